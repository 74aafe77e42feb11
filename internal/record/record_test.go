package record

import (
	"encoding/json"
	"testing"
	"time"
)

func TestModeStringRoundTrip(t *testing.T) {
	all := []Mode{None, Read, Write, Delete, Read | Write, Read | Delete, Write | Delete, Read | Write | Delete}
	for _, m := range all {
		s := m.String()
		got := ParseMode(s)
		if got != m {
			t.Errorf("round trip %q: got %v want %v", s, got, m)
		}
	}
}

func TestParseModeTolerantOfTrailingJunk(t *testing.T) {
	got := ParseMode("ReadWriteFrobnicate")
	if got != Read|Write {
		t.Errorf("got %v want Read|Write", got)
	}
}

func TestModeJSONRoundTrip(t *testing.T) {
	want := Write | Delete
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"WriteDelete"` {
		t.Errorf("got %s, want %q", data, `"WriteDelete"`)
	}
	var got Mode
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestFoldSuccessDominates(t *testing.T) {
	r := &AccessRecord{}
	t0 := time.Now()
	r.Fold(Read, t0, true)
	r.Fold(Write, t0.Add(time.Second), true)
	if r.EffectiveMode != Write {
		t.Errorf("effective mode = %v, want Write", r.EffectiveMode)
	}
	if r.AllModes != Read|Write {
		t.Errorf("all modes = %v, want Read|Write", r.AllModes)
	}
	if r.SuccessCount != 2 || r.FailureCount != 0 {
		t.Errorf("counts = %d/%d, want 2/0", r.SuccessCount, r.FailureCount)
	}
}

func TestFoldReadNeverAdvancesLastWriteTime(t *testing.T) {
	r := &AccessRecord{}
	t0 := time.Now()
	r.Fold(Write, t0, true)
	r.Fold(Read, t0.Add(time.Hour), true)
	if !r.LastWriteTime.Equal(t0) {
		t.Errorf("last write time = %v, want %v (read must not advance it)", r.LastWriteTime, t0)
	}
}

func TestFoldFailureLeavesEffectiveModeAndTimeUnchanged(t *testing.T) {
	r := New(Write, time.Now(), true)
	before := *r
	r.Fold(Delete, before.LastWriteTime.Add(time.Hour), false)
	if r.EffectiveMode != before.EffectiveMode {
		t.Errorf("effective mode changed on failure: %v -> %v", before.EffectiveMode, r.EffectiveMode)
	}
	if !r.LastWriteTime.Equal(before.LastWriteTime) {
		t.Errorf("last write time changed on failure")
	}
	if r.AllModes&Delete == 0 {
		t.Error("all modes should record the attempted failed mode")
	}
	if r.FailureCount != 1 {
		t.Errorf("failure count = %d, want 1", r.FailureCount)
	}
}

func TestFoldIdentityWithNone(t *testing.T) {
	r := New(Write, time.Now(), true)
	before := *r
	r.Fold(None, time.Now().Add(time.Hour), true)
	if *r != before {
		t.Errorf("fold(None, ..., true) changed the record: %+v -> %+v", before, *r)
	}
}

func TestFoldOrderInsensitive(t *testing.T) {
	t0 := time.Now()
	type obs struct {
		mode    Mode
		t       time.Time
		success bool
	}
	observations := []obs{
		{Write, t0, true},
		{Read, t0.Add(time.Minute), true},
		{Delete, t0.Add(2 * time.Minute), true},
		{Write, t0.Add(-time.Minute), false},
	}

	forward := &AccessRecord{}
	for _, o := range observations {
		forward.Fold(o.mode, o.t, o.success)
	}

	reversed := &AccessRecord{}
	for i := len(observations) - 1; i >= 0; i-- {
		o := observations[i]
		reversed.Fold(o.mode, o.t, o.success)
	}

	if *forward != *reversed {
		t.Errorf("fold is order-sensitive: forward=%+v reversed=%+v", *forward, *reversed)
	}
}

func TestCreateThenDeleteWithinSession(t *testing.T) {
	// S8: a file created then deleted has effective_mode = Delete and
	// all_modes contains Write and Delete.
	t0 := time.Now()
	r := New(Write, t0, true)
	r.Fold(Delete, t0.Add(time.Second), true)
	if r.EffectiveMode != Delete {
		t.Errorf("effective mode = %v, want Delete", r.EffectiveMode)
	}
	if r.AllModes&(Write|Delete) != (Write | Delete) {
		t.Errorf("all modes = %v, want to contain Write|Delete", r.AllModes)
	}
}

func TestFailedThenSuccessfulOpen(t *testing.T) {
	// S5: failed open, then create, then successful open.
	t0 := time.Now()
	r := &AccessRecord{}
	r.Fold(Read, t0, false)
	r.Fold(Write, t0.Add(time.Second), true)
	r.Fold(Read, t0.Add(2*time.Second), true)
	if r.EffectiveMode != Write {
		t.Errorf("effective mode = %v, want Write", r.EffectiveMode)
	}
	if r.AllModes != Read|Write {
		t.Errorf("all modes = %v, want Read|Write", r.AllModes)
	}
	if r.SuccessCount != 2 || r.FailureCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", r.SuccessCount, r.FailureCount)
	}
	if !r.LastWriteTime.Equal(t0.Add(time.Second)) {
		t.Errorf("last write time = %v, want %v", r.LastWriteTime, t0.Add(time.Second))
	}
}
