package udf

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
)

// NewColorLogSink builds a logr.LogSink that writes level-colored lines to
// w, grounded on the simple text sink shape used for disc-structure walkers
// elsewhere in this ecosystem: info in bright white, debug (V(1)) in
// cyan, trace (V(2)+) in faint, errors in red with the error printed inline.
// The CLI tools pass this to WithLogger; the package itself never writes to
// stdio directly.
func NewColorLogSink(w io.Writer) logr.LogSink {
	return &colorSink{w: w}
}

type colorSink struct {
	w      io.Writer
	name   string
	values []any
}

func (s *colorSink) Init(info logr.RuntimeInfo) {}

func (s *colorSink) Enabled(level int) bool { return true }

func (s *colorSink) Info(level int, msg string, kv ...any) {
	c := color.New(color.FgHiWhite)
	switch {
	case level >= 2:
		c = color.New(color.Faint)
	case level == 1:
		c = color.New(color.FgCyan)
	}
	fmt.Fprintln(s.w, c.Sprint(s.format(msg, kv)))
}

func (s *colorSink) Error(err error, msg string, kv ...any) {
	line := s.format(msg, append(kv, "error", err))
	fmt.Fprintln(s.w, color.New(color.FgRed).Sprint(line))
}

func (s *colorSink) format(msg string, kv []any) string {
	out := fmt.Sprintf("%s %s", time.Now().UTC().Format("15:04:05.000"), msg)
	if s.name != "" {
		out = s.name + ": " + out
	}
	all := append(append([]any{}, s.values...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		out += fmt.Sprintf(" %v=%v", all[i], all[i+1])
	}
	return out
}

func (s *colorSink) WithValues(kv ...any) logr.LogSink {
	return &colorSink{w: s.w, name: s.name, values: append(append([]any{}, s.values...), kv...)}
}

func (s *colorSink) WithName(name string) logr.LogSink {
	n := name
	if s.name != "" {
		n = s.name + "." + name
	}
	return &colorSink{w: s.w, name: n, values: s.values}
}
