// Package logging wires up the process-wide structured logger: a logrus
// logger writing to stderr by default, or to a lumberjack-rotated file when
// configured.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors cfg.LoggingConfig's shape for the subset logging.New
// needs; kept separate so this package doesn't import cfg.
type Config struct {
	Format   string // "text" or "json"
	Severity string // logrus level name, e.g. "info", "debug"
	FilePath string // empty means stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a *logrus.Logger per cfg. The op handlers take a
// *logrus.Entry derived from it via WithField, following the
// teacher's practice of tagging every line with the subsystem that emitted
// it.
func New(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(orDefault(cfg.Severity, "info"))
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	log.SetOutput(output(cfg))
	return log, nil
}

func output(cfg Config) io.Writer {
	if cfg.FilePath == "" {
		return os.Stderr
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    orDefaultInt(cfg.MaxSizeMB, 100),
		MaxBackups: orDefaultInt(cfg.MaxBackups, 5),
		MaxAge:     orDefaultInt(cfg.MaxAgeDays, 28),
		Compress:   true,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
