// Package nodes tracks which curriculum nodes a learner has finished across
// sessions. The tracker is a write-side collaborator: callers mark a node when
// a module completes, and nothing in a lesson controller ever reads it back.
package nodes

import (
	"context"
	"errors"
	"strings"
)

// AnonymousLearner is the bucket used when a session carries no learner id.
const AnonymousLearner = "anonymous"

// ErrEmptyNode is returned when a node id is blank.
var ErrEmptyNode = errors.New("node id is required")

// Tracker records completed nodes per learner.
type Tracker interface {
	// MarkComplete adds nodeID to the learner's completed set. Repeats are no-ops.
	MarkComplete(ctx context.Context, learnerID, nodeID string) error
	// Completed lists the learner's completed nodes in lexical order.
	Completed(ctx context.Context, learnerID string) ([]string, error)
}

// LearnerKey normalises a learner id, mapping blanks to AnonymousLearner.
func LearnerKey(learnerID string) string {
	learnerID = strings.TrimSpace(learnerID)
	if learnerID == "" {
		return AnonymousLearner
	}
	return learnerID
}
