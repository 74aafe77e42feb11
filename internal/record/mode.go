// Package record implements the per-path access accumulator: the mode
// lattice and the commutative fold that turns raw observations into a
// session's final summary.
package record

import (
	"encoding/json"
	"strings"
)

// Mode is a bit-set over {Read, Write, Delete}. The zero value is None.
type Mode uint8

const (
	None Mode = 0
	Read Mode = 1 << iota
	Write
	Delete
)

// dominate returns the dominating element of a and b under the strict
// lattice None < Read < Write < Delete. A compound mode such as Read|Write
// counts as its highest member.
func dominate(a, b Mode) Mode {
	m := a | b
	switch {
	case m&Delete != 0:
		return Delete
	case m&Write != 0:
		return Write
	case m&Read != 0:
		return Read
	default:
		return None
	}
}

// String renders the mode as the concatenation of its canonical tokens
// (Read, Write, Delete, in that order). None renders as "None".
func (m Mode) String() string {
	if m == None {
		return "None"
	}
	var b strings.Builder
	if m&Read != 0 {
		b.WriteString("Read")
	}
	if m&Write != 0 {
		b.WriteString("Write")
	}
	if m&Delete != 0 {
		b.WriteString("Delete")
	}
	return b.String()
}

// MarshalJSON renders m the same way String does, so cmd/amctl's JSON
// output reads "Write" rather than a bare bit-set integer.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON is the inverse of MarshalJSON, via ParseMode.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = ParseMode(s)
	return nil
}

// ParseMode is the inverse of String. It is tolerant of an unknown trailing
// token: parsing stops at the first token it doesn't recognize rather than
// failing, so a truncated or forward-compatible record still yields
// whatever prefix of modes it could read.
func ParseMode(s string) Mode {
	var m Mode
	for s != "" {
		switch {
		case strings.HasPrefix(s, "Read"):
			m |= Read
			s = s[len("Read"):]
		case strings.HasPrefix(s, "Write"):
			m |= Write
			s = s[len("Write"):]
		case strings.HasPrefix(s, "Delete"):
			m |= Delete
			s = s[len("Delete"):]
		case s == "None":
			return None
		default:
			return m
		}
	}
	return m
}
