package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Options controls where and how log lines are written.
type Options struct {
	// Path is the log file. Empty means stderr; stdout is reserved for MCP traffic.
	Path string
	// Level is a logrus level name such as "debug" or "warn". Defaults to info.
	Level string
	// Format is "text" or "json".
	Format string
}

var (
	mu      sync.RWMutex
	std     *logrus.Logger
	logFile *os.File
)

// Init configures the package logger. Calling it again replaces the previous
// configuration and closes any file opened before.
func Init(opts Options) error {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	var f *os.File
	if opts.Path != "" {
		if err := ensureParentDir(opts.Path); err != nil {
			return err
		}
		var err error
		f, err = os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		l.SetOutput(f)
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	Use(l)
	swapFile(f)
	return nil
}

// Use replaces the backing logger.
func Use(l *logrus.Logger) {
	mu.Lock()
	std = l
	mu.Unlock()
}

// Close closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	if std != nil {
		std.SetOutput(io.Discard)
	}
	return err
}

// Debugf logs verbose diagnostics.
func Debugf(format string, args ...any) { current().Debugf(format, args...) }

// Infof logs informational messages.
func Infof(format string, args ...any) { current().Infof(format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { current().Warnf(format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { current().Errorf(format, args...) }

// WithFields returns an entry carrying structured fields.
func WithFields(fields logrus.Fields) *logrus.Entry { return current().WithFields(fields) }

func current() *logrus.Logger {
	mu.RLock()
	l := std
	mu.RUnlock()
	if l != nil {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if std == nil {
		std = logrus.New()
		std.SetOutput(os.Stderr)
	}
	return std
}

func swapFile(f *os.File) {
	mu.Lock()
	old := logFile
	logFile = f
	mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
