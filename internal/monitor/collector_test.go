package monitor

import (
	"os"
	"testing"
	"time"

	"github.com/peterpjaspers/accessmonitor/internal/queue"
	"github.com/peterpjaspers/accessmonitor/internal/record"
)

func TestParseEventLineRoundTrip(t *testing.T) {
	want := queue.RawEvent{
		Path:    "/w/a.txt",
		Mode:    record.Write,
		Time:    time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC),
		Success: true,
	}
	line := want.Path + " [ " + want.Time.Format(eventTimeLayout) + " ] " + want.Mode.String() + " 1"

	got, ok := parseEventLine(line)
	if !ok {
		t.Fatalf("parseEventLine(%q) failed", line)
	}
	if got.Path != want.Path || got.Mode != want.Mode || got.Success != want.Success || !got.Time.Equal(want.Time) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseEventLineMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"/no/brackets/here",
		"/p [ 2026-07-29 10:00:00.000000000 ] Read",       // missing success flag
		"/p [ 2026-07-29 10:00:00.000000000 ] Bogus 1",    // unparseable mode -> None
		"/p [ not-a-timestamp ] Read 1",                   // bad timestamp
		"/p [ 2026-07-29 10:00:00.000000000 ] Read maybe", // bad success flag
	} {
		if _, ok := parseEventLine(line); ok {
			t.Errorf("parseEventLine(%q) unexpectedly succeeded", line)
		}
	}
}

// writeEventFile writes raw text lines directly, bypassing startDrainer, so
// a test can include a deliberately truncated final line.
func writeEventFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write event file: %v", err)
	}
}

func TestParseEventLogStopsAtTruncatedFinalLine(t *testing.T) {
	dir := t.TempDir()
	s := &Session{Directory: dir}
	path := s.eventLogPath(1)

	goodLine := func(p, mode string, ok bool) string {
		flag := "0"
		if ok {
			flag = "1"
		}
		return p + " [ 2026-07-29 10:00:00.000000000 ] " + mode + " " + flag
	}
	writeEventFile(t, path,
		goodLine("/a", "Read", true),
		goodLine("/b", "Write", true),
		"truncated garbage with no brackets",
	)

	events := parseEventLog(s, 1)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (truncation should stop, not fail, the file)", len(events))
	}
}

func TestParseEventLogMissingFileIsEmpty(t *testing.T) {
	s := &Session{Directory: t.TempDir()}
	events := parseEventLog(s, 12345)
	if events != nil {
		t.Errorf("expected no events for a participant that never wrote a file, got %v", events)
	}
}

func TestFoldIsOrderInsensitiveAcrossParticipants(t *testing.T) {
	dir := t.TempDir()
	s := &Session{Directory: dir, participants: map[int]bool{1: true, 2: true}}

	t0 := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	writeEventFile(t, s.eventLogPath(1),
		"/out/z [ "+t0.Format(eventTimeLayout)+" ] Write 1",
	)
	writeEventFile(t, s.eventLogPath(2),
		"/out/z [ "+t1.Format(eventTimeLayout)+" ] Read 1",
		"/out/z [ "+t0.Format(eventTimeLayout)+" ] Delete 1",
	)

	result, err := Fold(s)
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}
	rec, ok := result["/out/z"]
	if !ok {
		t.Fatalf("missing /out/z in fold result")
	}
	if rec.EffectiveMode != record.Delete {
		t.Errorf("effective mode = %v, want Delete", rec.EffectiveMode)
	}
	if rec.AllModes != record.Read|record.Write|record.Delete {
		t.Errorf("all modes = %v, want Read|Write|Delete", rec.AllModes)
	}
	if rec.SuccessCount != 3 {
		t.Errorf("success count = %d, want 3", rec.SuccessCount)
	}
}

func TestFoldMissingParticipantFileDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	s := &Session{Directory: dir, participants: map[int]bool{1: true, 2: true}}

	writeEventFile(t, s.eventLogPath(1),
		"/a [ 2026-07-29 09:00:00.000000000 ] Read 1",
	)
	// pid 2 never wrote a file at all (spec.md §8 #10: a child that
	// never joined contributes zero events, and the fold still
	// succeeds).

	result, err := Fold(s)
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}
	if _, ok := result["/a"]; !ok {
		t.Errorf("missing /a in fold result: %v", result)
	}
	if len(result) != 1 {
		t.Errorf("got %d paths, want 1", len(result))
	}
}
