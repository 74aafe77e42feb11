package monitor

import "strings"

// Aspect is the diagnostic log aspect bit-set (spec.md §6). Each bit gates
// an independent category of debug-log output; a session picks whichever
// subset it wants via LogAspects in Options. Names and bit order follow
// original_source/accessMonitor/MonitorLogging.h's MonitorLogAspects enum.
type Aspect uint32

const (
	RegisteredFunctions Aspect = 1 << iota
	ParseLibrary
	PatchedFunction
	PatchExecution
	FileAccesses
	WriteTime
)

var aspectNames = []struct {
	bit  Aspect
	name string
}{
	{RegisteredFunctions, "RegisteredFunctions"},
	{ParseLibrary, "ParseLibrary"},
	{PatchedFunction, "PatchedFunction"},
	{PatchExecution, "PatchExecution"},
	{FileAccesses, "FileAccesses"},
	{WriteTime, "WriteTime"},
}

// Has reports whether bit is set in a.
func (a Aspect) Has(bit Aspect) bool { return a&bit != 0 }

// String renders the set bits as a comma-joined list of their names.
func (a Aspect) String() string {
	var names []string
	for _, e := range aspectNames {
		if a.Has(e.bit) {
			names = append(names, e.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ParseAspects parses a comma- or whitespace-separated list of aspect names
// into a bit-set, additively OR'ing each recognized name. Unknown names are
// ignored rather than rejected, matching the tolerant parsing spec.md
// requires of mode-string parsing — the same forward-compatibility concern
// applies to a config value naming a category a newer build removed.
func ParseAspects(s string) Aspect {
	var a Aspect
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	for _, f := range fields {
		for _, e := range aspectNames {
			if strings.EqualFold(f, e.name) {
				a |= e.bit
				break
			}
		}
	}
	return a
}
