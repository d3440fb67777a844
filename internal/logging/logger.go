package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	base   = newBase()
	baseMu sync.Mutex
)

// Options configures the shared logger
type Options struct {
	Level  string // trace|debug|info|warn|error
	Format string // text|json
	Output io.Writer
}

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}

// Configure applies level, format and output to every component logger
func Configure(opts Options) {
	baseMu.Lock()
	defer baseMu.Unlock()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if opts.Output != nil {
		base.SetOutput(opts.Output)
	}
}

// NewLogger returns the logger for a component, creating it on first use.
// All component loggers share one underlying logrus.Logger.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := base.WithField("component", component)
	loggers[component] = logger
	return logger
}
