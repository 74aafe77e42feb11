package monitor

import "testing"

func TestSessionIDReuseViaFreeList(t *testing.T) {
	r := &sessionRegistry{sessions: map[int]*Session{}}
	dir := t.TempDir()

	s1, err := r.create(dir, 0, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s2, err := r.create(dir, 0, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s1.ID == s2.ID {
		t.Fatalf("two live sessions got the same id %d", s1.ID)
	}

	r.remove(s1.ID)
	s3, err := r.create(dir, 0, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s3.ID != s1.ID {
		t.Errorf("released id %d was not reused, got %d", s1.ID, s3.ID)
	}
}

func TestSessionParticipants(t *testing.T) {
	r := &sessionRegistry{sessions: map[int]*Session{}}
	s, err := r.create(t.TempDir(), 0, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s.AddParticipant(100)
	s.AddParticipant(101)
	s.AddParticipant(100) // duplicate add is idempotent

	got := map[int]bool{}
	for _, pid := range s.Participants() {
		got[pid] = true
	}
	if len(got) != 2 || !got[100] || !got[101] {
		t.Errorf("Participants() = %v, want {100, 101}", s.Participants())
	}
}

func TestSessionGetUnknown(t *testing.T) {
	r := &sessionRegistry{sessions: map[int]*Session{}}
	if _, ok := r.get(999); ok {
		t.Errorf("get of never-created id reported ok")
	}
}
