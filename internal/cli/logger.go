package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/pablasso/retain/internal/config"
	"github.com/pablasso/retain/internal/log"
	loglogrus "github.com/pablasso/retain/internal/log/logrus"
	"github.com/pablasso/retain/internal/version"
)

// newLogger returns the application logger and a func releasing its output.
// Logs go to w unless a log file is configured.
func newLogger(cfg config.Config, w io.Writer) (log.Logger, func() error, error) {
	noClose := func() error { return nil }

	if cfg.NoLog {
		return log.Noop, noClose, nil
	}

	out := w
	closeOut := noClose
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open log file: %w", err)
		}
		out = f
		closeOut = f.Close
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		_ = closeOut()
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	logrusLog := logrus.New()
	logrusLog.Out = out
	logrusLog.SetLevel(level)
	logrusLogEntry := logrus.NewEntry(logrusLog)

	switch cfg.LogFormat {
	case config.LogFormatJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: cfg.LogFile != "",
		})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": version.Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger, closeOut, nil
}
