package config

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stderr)
}

// GetLogger returns the process-wide logger
func GetLogger() *logrus.Logger {
	return logg
}

// ConfigureLogger applies the configured level and output to the
// process-wide logger
func ConfigureLogger(cfg LogConfig, out io.Writer) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logg.SetLevel(level)
	if out != nil {
		logg.SetOutput(out)
	}
	return nil
}

// LogError writes a structured error entry
func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
