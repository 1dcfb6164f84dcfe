// Package logging builds the charmbracelet logger used by the CLI.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// EnvLevel names the environment variable that overrides the log level.
const EnvLevel = "ARMLIFT_LOG_LEVEL"

// New returns a logger writing to w at the named level. An empty level falls
// back to $ARMLIFT_LOG_LEVEL, then info.
func New(w io.Writer, level string) *log.Logger {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "armlift",
	})
	if level == "" {
		level = os.Getenv(EnvLevel)
	}
	lg.SetLevel(ParseLevel(level))
	return lg
}

// ParseLevel maps debug, warn and error to their levels; anything else is info.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(s) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
