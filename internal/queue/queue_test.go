package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/peterpjaspers/accessmonitor/internal/record"
)

func TestPushPopFIFOSingleProducer(t *testing.T) {
	q := New()
	for i := 0; i < 5; i++ {
		q.Push(RawEvent{Path: string(rune('a' + i)), Mode: record.Read, Success: true})
	}
	for i := 0; i < 5; i++ {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: got sentinel early", i)
		}
		if e.Path != string(rune('a'+i)) {
			t.Errorf("pop %d: path = %q, want %q", i, e.Path, string(rune('a'+i)))
		}
	}
}

func TestEventsBeforeSentinelAllDrainFirst(t *testing.T) {
	q := New()
	const n = 100
	go func() {
		for i := 0; i < n; i++ {
			q.Push(RawEvent{Path: "x"})
		}
		q.Stop()
	}()

	count := 0
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		count++
	}
	if count != n {
		t.Errorf("drained %d events, want %d", count, n)
	}
	// Pop after sentinel keeps reporting the sentinel, never panics or blocks.
	_, ok := q.Pop()
	if ok {
		t.Error("pop after sentinel should keep reporting (zero, false)")
	}
}

func TestPushAfterStopIsNoOp(t *testing.T) {
	q := New()
	q.Stop()
	q.Push(RawEvent{Path: "late"})
	_, ok := q.Pop()
	if ok {
		t.Error("event pushed after Stop should have been dropped")
	}
}

func TestConcurrentProducersAllEventsDelivered(t *testing.T) {
	q := New()
	const producers = 8
	const perProducer = 200
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(RawEvent{Path: "p", Mode: record.Write, Success: true})
			}
		}()
	}
	go func() {
		wg.Wait()
		q.Stop()
	}()

	count := 0
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		count++
	}
	if count != producers*perProducer {
		t.Errorf("drained %d events, want %d", count, producers*perProducer)
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New()
	done := make(chan RawEvent, 1)
	go func() {
		e, _ := q.Pop()
		done <- e
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before any event was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(RawEvent{Path: "late-arrival"})
	select {
	case e := <-done:
		if e.Path != "late-arrival" {
			t.Errorf("got %q, want late-arrival", e.Path)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after push")
	}
}
