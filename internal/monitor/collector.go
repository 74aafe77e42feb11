package monitor

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/peterpjaspers/accessmonitor/internal/queue"
	"github.com/peterpjaspers/accessmonitor/internal/record"
)

// eventTimeLayout is the §6 event-file timestamp format. Go's reference
// layout only gives nanosecond precision with nine fractional digits, one
// short of the ten the spec literally shows; nine is what time.Time can
// actually produce, and the fold's tolerant parser doesn't care about the
// width of the fractional field.
const eventTimeLayout = "2006-01-02 15:04:05.000000000"

// startDrainer pops RawEvents off s.Queue and appends them, one text
// record per line per §6's event-file format, to this process's own event
// log. Exactly one drainer runs per process per session — the local queue
// is itself already the single point every interceptor body in this
// process funnels through.
func startDrainer(s *Session, pid int) error {
	f, err := os.OpenFile(s.eventLogPath(pid), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}

	go func() {
		defer close(s.drainerDone)
		defer f.Close()
		w := bufio.NewWriter(f)
		defer w.Flush()

		var written, flushEvery int
		for {
			e, ok := s.Queue.Pop()
			if !ok {
				return
			}
			if e.Path == "" {
				continue
			}
			n, err := fmt.Fprintf(w, "%s [ %s ] %s %s\n",
				e.Path, e.Time.UTC().Format(eventTimeLayout), e.Mode.String(), successFlag(e.Success))
			if err != nil {
				if s.DebugLog != nil {
					s.DebugLog.Debug("event log write failed", "error", err)
				}
				continue
			}
			written += n
			// Flush periodically rather than per-event: amortizes the
			// syscall cost of a high-frequency build without risking an
			// unbounded buffer if the process is killed.
			flushEvery++
			if flushEvery >= 64 {
				w.Flush()
				if s.DebugLog != nil {
					s.DebugLog.Debug("drainer flushed", "bytes", humanize.Bytes(uint64(written)), "queued", s.Queue.Len())
				}
				flushEvery = 0
			}
		}
	}()
	return nil
}

func successFlag(ok bool) string {
	if ok {
		return "1"
	}
	return "0"
}

// stopDrainer signals this session's queue to stop and blocks until the
// drainer goroutine has finished flushing everything pushed before that
// point.
func (s *Session) stopDrainer() {
	s.Queue.Stop()
	<-s.drainerDone
}

// Fold reads every participant's event log under s.Directory and merges
// them into a single path -> AccessRecord map, using record.Fold's
// order-insensitive accumulation so the result is identical regardless of
// which participant file is parsed first, and regardless of line order
// within any prefix of a file (spec.md §8 #5). Each participant's file is
// parsed concurrently; only the final merge step is serialized.
//
// A participant file that a process never wrote (it never joined, or it
// joined but touched no files) is not an error — see parseEventLog. A
// malformed or truncated final line stops parsing of that one file; it
// never aborts the fold (§4.H, §7), which is why, unlike a typical
// errgroup.Group use, per-file errors are swallowed here rather than
// propagated through g.Wait().
func Fold(s *Session) (map[string]*record.AccessRecord, error) {
	pids := s.Participants()

	result := map[string]*record.AccessRecord{}
	var mergeMu sync.Mutex

	g := new(errgroup.Group)
	for _, pid := range pids {
		pid := pid
		g.Go(func() error {
			events := parseEventLog(s, pid)
			mergeMu.Lock()
			defer mergeMu.Unlock()
			for _, e := range events {
				mergeInto(result, e)
			}
			return nil
		})
	}
	_ = g.Wait() // no goroutine above ever returns a non-nil error
	return result, nil
}

func mergeInto(result map[string]*record.AccessRecord, e queue.RawEvent) {
	rec, ok := result[e.Path]
	if !ok {
		result[e.Path] = record.New(e.Mode, e.Time, e.Success)
		return
	}
	rec.Fold(e.Mode, e.Time, e.Success)
}

// parseEventLog reads one participant's event file and returns however
// many well-formed records precede the first malformed or truncated line.
// A participant that never opened its event log (never joined, or joined
// but touched no files) simply has no file; that is a legitimate outcome
// (spec.md §8 #10), not a parse failure.
func parseEventLog(s *Session, pid int) []queue.RawEvent {
	path := s.eventLogPath(pid)
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var events []queue.RawEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		e, ok := parseEventLine(sc.Text())
		if !ok {
			if s.DebugLog != nil {
				s.DebugLog.Debug("malformed event record, stopping file", "path", path)
			}
			break
		}
		events = append(events, e)
	}
	return events
}

// parseEventLine parses one §6 event-file record:
//
//	<absolute-path> [ YYYY-MM-DD HH:MM:SS.fffffffff ] <mode-tokens> <success-flag>
func parseEventLine(line string) (queue.RawEvent, bool) {
	open := strings.Index(line, " [ ")
	if open < 0 {
		return queue.RawEvent{}, false
	}
	path := line[:open]
	rest := line[open+len(" [ "):]

	close := strings.Index(rest, " ] ")
	if close < 0 {
		return queue.RawEvent{}, false
	}
	tsField := rest[:close]
	fields := strings.Fields(rest[close+len(" ] "):])
	if len(fields) != 2 {
		return queue.RawEvent{}, false
	}

	t, err := time.Parse(eventTimeLayout, tsField)
	if err != nil {
		return queue.RawEvent{}, false
	}
	mode := record.ParseMode(fields[0])
	if mode == record.None {
		return queue.RawEvent{}, false
	}
	var success bool
	switch fields[1] {
	case "1":
		success = true
	case "0":
		success = false
	default:
		return queue.RawEvent{}, false
	}

	return queue.RawEvent{Path: path, Mode: mode, Time: t, Success: success}, true
}
