package cmd

import (
	"flag"
	"io"

	"github.com/charmbracelet/log"
)

// LogLevelFlag registers the -loglevel flag on the default flag set.
func LogLevelFlag() *string {
	return flag.String("loglevel", "info", "Minimum level of diagnostics to print: debug, info, warn or error.")
}

// NewLogger returns a logger printing diagnostics of at least the given
// level to w. The logger satisfies sabre.Logger.
func NewLogger(w io.Writer, level string, prefix string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          prefix,
		ReportTimestamp: false,
	}), nil
}
