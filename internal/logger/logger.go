package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger from file config. Console output always
// goes to stderr; file output is added when LogFile is set, rotated by
// lumberjack.
func New(cfg FileLogConfig) (zerolog.Logger, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), err
	}

	writers := []io.Writer{consoleWriter(cfg.LogFormat)}
	if cfg.LogFile != "" {
		writers = append(writers, fileWriter(cfg))
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		s = DefaultLogLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func consoleWriter(format string) io.Writer {
	switch strings.ToLower(format) {
	case "json":
		return os.Stderr
	default:
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}
}

func fileWriter(cfg FileLogConfig) io.Writer {
	maxSize := cfg.MaxLogSizeMB
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSizeMB
	}
	maxBackups := cfg.MaxLogBackups
	if maxBackups <= 0 {
		maxBackups = DefaultMaxLogBackups
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	}
}
