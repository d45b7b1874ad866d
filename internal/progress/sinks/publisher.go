package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/concept-modules/internal/progress"
	"github.com/JakeFAU/concept-modules/internal/publisher"
)

// PublisherSink announces module completions and next-module navigations.
type PublisherSink struct {
	pub    publisher.Publisher
	topic  string
	logger *zap.Logger
}

// NewPublisherSink publishes notifications to topic through pub.
func NewPublisherSink(pub publisher.Publisher, topic string, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{pub: pub, topic: topic, logger: logger}
}

// Consume publishes one notification per module-level event. Every event is
// attempted; failures are joined.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		note, ok := notificationFor(evt)
		if !ok {
			continue
		}
		id, err := s.pub.Publish(ctx, s.topic, note)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s for session %s: %w", note.Kind, note.SessionID, err))
			continue
		}
		s.logger.Debug("published lesson notification",
			zap.String("message_id", id),
			zap.String("kind", note.Kind),
			zap.String("module_id", note.ModuleID),
		)
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}

func notificationFor(evt progress.Event) (publisher.Notification, bool) {
	var kind string
	switch evt.Stage {
	case progress.StageModuleCompleted:
		kind = publisher.KindModuleCompleted
	case progress.StageNavigateNext:
		kind = publisher.KindNavigateNext
	default:
		return publisher.Notification{}, false
	}
	return publisher.Notification{
		Kind:         kind,
		SessionID:    evt.SessionUUID().String(),
		ModuleID:     evt.ModuleID,
		LearnerID:    evt.LearnerID,
		NextModuleID: evt.NextModuleID,
		UnitsTotal:   evt.Total,
		OccurredAt:   evt.TS.UTC(),
	}, true
}
