// Package consolediag provides an optional colorized stdout sink for
// the gateway package's diagnostic channel.
package consolediag

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// Sink formats (level, message) tuples for a terminal. It implements
// the func(uint, string) shape RegisterDiagnosticMessageCallback
// expects directly via its Diag method.
type Sink struct {
	w io.Writer

	dim    *color.Color
	info   *color.Color
	warn   *color.Color
	severe *color.Color
}

// New constructs a Sink writing to os.Stdout.
func New() *Sink {
	return &Sink{
		w:      os.Stdout,
		dim:    color.New(color.FgHiBlack),
		info:   color.New(color.FgCyan),
		warn:   color.New(color.FgYellow),
		severe: color.New(color.FgRed, color.Bold),
	}
}

// Diag is the diagnostic sink function; pass it directly to
// gateway.Session.RegisterDiagnosticMessageCallback.
func (s *Sink) Diag(level uint, message string) {
	ts := time.Now().Format("15:04:05")
	line := fmt.Sprintf("%s [%s] %s", ts, levelLabel(level), message)

	switch {
	case level >= 10:
		s.severe.Fprintln(s.w, line)
	case level >= 5:
		s.warn.Fprintln(s.w, line)
	case level >= 1:
		s.info.Fprintln(s.w, line)
	default:
		s.dim.Fprintln(s.w, line)
	}
}

func levelLabel(level uint) string {
	switch {
	case level >= 10:
		return "ERR"
	case level >= 5:
		return "WRN"
	case level >= 1:
		return "INF"
	default:
		return "RAW"
	}
}
