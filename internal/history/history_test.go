package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/peterpjaspers/accessmonitor/internal/record"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndLastRoundTrip(t *testing.T) {
	s := openTestStore(t)

	started := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	stopped := started.Add(5 * time.Second)

	writeRec := record.New(record.Write, started, true)
	readRec := record.New(record.Read, started, true)

	sum := SessionSummary{
		SessionID:    1,
		StartedAt:    started,
		StoppedAt:    stopped,
		Directory:    "/tmp/amt/AccessMonitorData/Session_1",
		Participants: 2,
		Records: map[string]*record.AccessRecord{
			"/out/z": writeRec,
			"/src/x": readRec,
		},
	}
	if err := s.Record(sum); err != nil {
		t.Fatalf("Record: %v", err)
	}

	last, err := s.Last()
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if last == nil {
		t.Fatal("Last returned nil after recording a session")
	}
	if last.SessionID != 1 || last.Directory != sum.Directory || last.Participants != 2 {
		t.Errorf("got %+v", last)
	}
	if len(last.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(last.Records))
	}
	got := last.Records["/out/z"]
	if got.EffectiveMode != record.Write || got.SuccessCount != 1 {
		t.Errorf("/out/z record = %+v", got)
	}
	if !got.LastWriteTime.Equal(started) {
		t.Errorf("/out/z last write time = %v, want %v", got.LastWriteTime, started)
	}
}

func TestLastOnEmptyHistoryReturnsNil(t *testing.T) {
	s := openTestStore(t)
	last, err := s.Last()
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if last != nil {
		t.Errorf("expected nil on empty history, got %+v", last)
	}
}

func TestPathsWrittenSinceFiltersReadOnly(t *testing.T) {
	s := openTestStore(t)
	started := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)

	sum := SessionSummary{
		SessionID: 1,
		StartedAt: started,
		StoppedAt: started.Add(time.Second),
		Directory: "/tmp/amt",
		Records: map[string]*record.AccessRecord{
			"/out/written": record.New(record.Write, started, true),
			"/src/read":    record.New(record.Read, started, true),
			"/out/deleted": record.New(record.Delete, started, true),
		},
	}
	if err := s.Record(sum); err != nil {
		t.Fatalf("Record: %v", err)
	}

	paths, err := s.PathsWrittenSince(started.Add(-time.Minute))
	if err != nil {
		t.Fatalf("PathsWrittenSince: %v", err)
	}
	got := map[string]bool{}
	for _, p := range paths {
		got[p] = true
	}
	if len(got) != 2 || !got["/out/written"] || !got["/out/deleted"] {
		t.Errorf("got %v, want {/out/written, /out/deleted}", paths)
	}
}
