package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/concept-modules/internal/progress"
)

// LogSink emits structured logs for lesson event streams. It is useful
// during development or audits where a durable ledger is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("session_id", evt.SessionUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("module_id", evt.ModuleID),
			zap.Int("completed", evt.Completed),
			zap.Int("total", evt.Total),
			zap.Duration("dur", evt.Dur),
		}
		if evt.UnitID != "" {
			fields = append(fields, zap.String("unit_id", evt.UnitID))
		}
		if evt.NextModuleID != "" {
			fields = append(fields, zap.String("next_module_id", evt.NextModuleID))
		}
		if evt.LearnerID != "" {
			fields = append(fields, zap.String("learner_id", evt.LearnerID))
		}
		s.logger.Info("lesson event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
