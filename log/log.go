package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Component tags every event with the owning component name.
	Component string

	// Level is the minimum level name ("debug", "info", ...). Empty or
	// unparseable values fall back to info.
	Level string

	// Writer receives the log stream. Defaults to stderr.
	Writer io.Writer
}

// New builds a structured logger. Construction is explicit and value-based;
// there is no package-level logger to configure.
func New(cfg Config) zerolog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	builder := zerolog.New(w).Level(level).With().Timestamp()
	if cfg.Component != "" {
		builder = builder.Str("component", cfg.Component)
	}

	return builder.Logger()
}
