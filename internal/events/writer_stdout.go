package events

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

// StdoutWriter writes every event as one log line. It is used when no broker is configured.
type StdoutWriter struct {
	logger *zap.Logger
}

func NewStdoutWriter(logger *zap.Logger) *StdoutWriter {
	if logger == nil {
		logger = zap.L()
	}
	return &StdoutWriter{logger: logger.Named("events")}
}

func (s *StdoutWriter) Write(_ context.Context, topic string, e cloudevents.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.logger.Info("record event",
		zap.String("topic", topic),
		zap.String("id", e.ID()),
		zap.String("type", e.Type()),
		zap.String("source", e.Source()),
		zap.Time("time", e.Time()),
		zap.ByteString("data", e.Data()),
	)
	return nil
}

func (s *StdoutWriter) Close(_ context.Context) error {
	// syncing a terminal fails on some platforms
	_ = s.logger.Sync()
	return nil
}
