package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/concept-modules/internal/progress"
	"github.com/JakeFAU/concept-modules/internal/store"
)

// StoreSink writes the completion ledger via a store.ProgressRepository.
// Activation and navigation events carry no ledger state and are skipped.
type StoreSink struct {
	repo   store.ProgressRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.ProgressRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards ledger events in batch order. It respects ctx deadlines and
// stops at the first repository error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		if err := s.consumeEvent(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) consumeEvent(ctx context.Context, evt progress.Event) error {
	id := evt.SessionUUID()
	switch evt.Stage {
	case progress.StageSessionStart:
		if err := s.repo.UpsertSessionStart(ctx, id, evt.ModuleID, evt.LearnerID, evt.Total, evt.TS); err != nil {
			return fmt.Errorf("upsert session start: %w", err)
		}
	case progress.StageUnitCompleted:
		if err := s.repo.RecordUnitCompletion(ctx, id, evt.ModuleID, evt.UnitID, evt.TS); err != nil {
			return fmt.Errorf("record unit completion: %w", err)
		}
	case progress.StageModuleCompleted:
		if err := s.repo.CompleteSession(ctx, id, evt.TS); err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
	case progress.StageSessionEnd:
		if err := s.repo.EndSession(ctx, id, evt.TS); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
	default:
		s.logger.Debug("ledger skips stage", zap.String("stage", string(evt.Stage)))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
