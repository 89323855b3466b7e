package app

import (
	"github.com/sirupsen/logrus"
)

type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL"`
	Format     string `env:"LOG_TYPE"`
	ServerName string `env:"SERVER_NAME"`
}

// NewLogger builds the service logger. Every log line carries the service
// name so the four services can share one log sink.
func (c LoggingConfig) NewLogger(service string) *logrus.Entry {
	l := logrus.New()

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if c.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	name := c.ServerName
	if name == "" {
		name = service
	}
	return l.WithField("service", name)
}
