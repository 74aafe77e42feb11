package config

import (
	"path/filepath"
	"testing"

	"github.com/peterpjaspers/accessmonitor/internal/monitor"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HandshakeTimeout() != monitor.DefaultHandshakeTimeout {
		t.Errorf("HandshakeTimeout = %v, want default %v", cfg.HandshakeTimeout(), monitor.DefaultHandshakeTimeout)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := &Config{
		Directory:               filepath.Join(dir, "sessions"),
		LogAspects:              "FileAccesses,WriteTime",
		HandshakeTimeoutSeconds: 10,
		InitBinary:              "/usr/local/bin/accessmonitor-init",
	}
	if err := Save(dir, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
	if got.Aspects() != monitor.FileAccesses|monitor.WriteTime {
		t.Errorf("Aspects() = %v, want FileAccesses|WriteTime", got.Aspects())
	}
}

func TestSessionDirectoryPrecedence(t *testing.T) {
	cfg := &Config{Directory: "/configured"}
	if got, _ := cfg.SessionDirectory("/explicit"); got != "/explicit" {
		t.Errorf("explicit override ignored, got %q", got)
	}
	if got, _ := cfg.SessionDirectory(""); got != "/configured" {
		t.Errorf("config default ignored, got %q", got)
	}
}
