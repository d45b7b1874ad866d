// Package publisher defines the notification contract used to announce lesson
// milestones to other systems.
package publisher

import (
	"context"
	"time"
)

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Kinds of notification payloads.
const (
	KindModuleCompleted = "module_completed"
	KindNavigateNext    = "navigate_next"
)

// Notification is the JSON payload published for module-level milestones.
type Notification struct {
	Kind         string    `json:"kind"`
	SessionID    string    `json:"session_id"`
	ModuleID     string    `json:"module_id"`
	LearnerID    string    `json:"learner_id,omitempty"`
	NextModuleID string    `json:"next_module_id,omitempty"`
	UnitsTotal   int       `json:"units_total"`
	OccurredAt   time.Time `json:"occurred_at"`
}
