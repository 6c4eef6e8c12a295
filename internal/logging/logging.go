// Package logging builds the structured zerolog loggers used by squint.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"

	// LevelEnv overrides the configured level when set.
	LevelEnv = "LOG_LEVEL"
)

// Config selects the level and destination of the root logger.
type Config struct {
	Level  string
	Output string
	File   string
}

// New builds the root logger. The returned closer releases the log file when
// Output is "file" and is a no-op otherwise.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	levelName := strings.TrimSpace(cfg.Level)
	if env := strings.TrimSpace(os.Getenv(LevelEnv)); env != "" {
		levelName = env
	}
	level := zerolog.InfoLevel
	if levelName != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(levelName))
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	out, closer, err := openOutput(cfg)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

func openOutput(cfg Config) (io.Writer, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", OutputStderr:
		return os.Stderr, nopCloser{}, nil
	case OutputStdout:
		return os.Stdout, nopCloser{}, nil
	case OutputFile:
		path := strings.TrimSpace(cfg.File)
		if path == "" {
			return nil, nil, fmt.Errorf("log output %q requires a file path", OutputFile)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return file, file, nil
	default:
		return nil, nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
}

// Component returns a child logger tagged with a component field.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Nop returns a disabled logger for tests.
func Nop() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
