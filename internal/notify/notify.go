package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notifier delivers fire-and-forget operational notifications. Delivery
// failures are logged, never propagated to the caller.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, header, content string)
}

// LogSink writes notifications to the service log.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log.WithField("component", "notify")}
}

func (s *LogSink) Notify(_ context.Context, severity Severity, header, content string) {
	entry := s.log.WithField("header", header)
	switch severity {
	case SeverityCritical:
		entry.Error(content)
	case SeverityWarning:
		entry.Warn(content)
	default:
		entry.Info(content)
	}
}

// Multi fans a notification out to several sinks.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, severity Severity, header, content string) {
	for _, n := range m {
		n.Notify(ctx, severity, header, content)
	}
}
