package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const logTimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Logger is the process-wide logger. Use GetLogger or ComponentLogger to read it.
var Logger *logrus.Logger

// InitLogger replaces the global logger. format is "json" or "text"; output is
// "stdout", "stderr" or "file", the last writing to file.
func InitLogger(level, format, output, file string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	writer, err := logWriter(output, file)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetLevel(logLevel)
	logger.SetOutput(writer)

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: logTimestampFormat})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: logTimestampFormat,
		})
	}

	Logger = logger
	return nil
}

func logWriter(output, file string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "file":
		if file == "" {
			return nil, fmt.Errorf("log output is file but no log file is configured")
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return f, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.Stdout, nil
	}
}

// GetLogger returns the global logger, creating an info-level JSON logger on first use
func GetLogger() *logrus.Logger {
	if Logger == nil {
		InitLogger("info", "json", "stdout", "")
	}
	return Logger
}

// ComponentLogger returns an entry tagged with the component name
func ComponentLogger(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}
