package sabre

import (
	"fmt"
	"sync"
)

type (
	// Logger is the diagnostics channel of the conversion. Recoverable
	// problems are reported here as warnings and the conversion goes on with
	// a fallback; only structural problems are returned as errors.
	// *github.com/charmbracelet/log.Logger satisfies this interface.
	Logger interface {
		Infof(format string, args ...interface{})
		Warnf(format string, args ...interface{})
	}

	// Severity tells apart the informational messages from the warnings.
	Severity int

	// Diagnostic is a single message of the diagnostics channel.
	Diagnostic struct {
		Severity Severity
		Message  string
	}

	// DiagnosticLog is a Logger that records every message in order. If
	// Next is set, the messages are also forwarded to it.
	DiagnosticLog struct {
		Next Logger

		mu      sync.Mutex
		entries []Diagnostic
	}

	discardLogger struct{}
)

const (
	Info Severity = iota
	Warning
)

// Discard is a Logger that drops everything.
var Discard Logger = discardLogger{}

func (discardLogger) Infof(string, ...interface{}) {}
func (discardLogger) Warnf(string, ...interface{}) {}

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (d Diagnostic) String() string {
	return d.Severity.String() + ": " + d.Message
}

func (l *DiagnosticLog) Infof(format string, args ...interface{}) {
	l.add(Info, format, args...)
	if l.Next != nil {
		l.Next.Infof(format, args...)
	}
}

func (l *DiagnosticLog) Warnf(format string, args ...interface{}) {
	l.add(Warning, format, args...)
	if l.Next != nil {
		l.Next.Warnf(format, args...)
	}
}

func (l *DiagnosticLog) add(s Severity, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Diagnostic{Severity: s, Message: fmt.Sprintf(format, args...)})
}

// Entries returns a copy of the recorded messages, in the order they were
// reported.
func (l *DiagnosticLog) Entries() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	ret := make([]Diagnostic, len(l.entries))
	copy(ret, l.entries)
	return ret
}

// Warnings returns the recorded warnings, in order.
func (l *DiagnosticLog) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ret []string
	for _, e := range l.entries {
		if e.Severity == Warning {
			ret = append(ret, e.Message)
		}
	}
	return ret
}

// DetectWarnings scans the song for things that convert fine but probably
// do not sound like the author intended. It never modifies the song.
//
// The player sums every side-chain input of a track into one signal, so more
// than one receive with ReceivingChannelIndex > 0 on the same track means the
// devices hear the sum of all of them.
func DetectWarnings(song *Song, log Logger) {
	for _, t := range song.Tracks {
		count := 0
		for _, r := range t.Receives {
			if r.ReceivingChannelIndex > 0 {
				count++
			}
		}
		if count > 1 {
			log.Warnf("track %q has %v side-chain receives, audio will be summed for all devices", t.Name, count)
		}
	}
}
