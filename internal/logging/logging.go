// Package logging configures logrus and the optional Sentry reporter.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"github.com/nhle/dojobot/internal/model"
)

var sentryEnabled bool

// Setup builds the root logger from cfg and initialises Sentry when a DSN
// is configured.
func Setup(cfg model.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			return nil, fmt.Errorf("initialising sentry: %w", err)
		}
		sentryEnabled = true
	}

	return log, nil
}

// Discard returns a logger that writes nowhere.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Component tags every entry of log with the component name.
func Component(log logrus.FieldLogger, name string) logrus.FieldLogger {
	return log.WithField("component", name)
}

// LogError logs err with structured context and reports it to Sentry.
func LogError(log logrus.FieldLogger, errorType string, err error, fields logrus.Fields) {
	entry := log.WithFields(logrus.Fields{
		"error_type": errorType,
		"error":      err.Error(),
	})
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Error("Error occurred")

	if !sentryEnabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", errorType)
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// LogEvent logs an event and records it as a Sentry breadcrumb.
func LogEvent(log logrus.FieldLogger, eventType string, fields logrus.Fields) {
	entry := log.WithField("event_type", eventType)
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Info("Event occurred")

	if !sentryEnabled {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  eventType,
		Data:      fields,
		Timestamp: time.Now(),
	})
}

// Flush waits for buffered Sentry events to be sent.
func Flush() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}
