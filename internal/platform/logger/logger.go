package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Services take the logger
// as a dependency so tests can swap in a silent one.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
