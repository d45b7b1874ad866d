// Package memory keeps completed nodes in-process.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/concept-modules/internal/nodes"
)

// Tracker is an in-memory nodes.Tracker.
type Tracker struct {
	mu    sync.RWMutex
	nodes map[string]map[string]struct{}
}

var _ nodes.Tracker = (*Tracker)(nil)

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{nodes: make(map[string]map[string]struct{})}
}

// MarkComplete implements nodes.Tracker.
func (t *Tracker) MarkComplete(_ context.Context, learnerID, nodeID string) error {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return nodes.ErrEmptyNode
	}
	key := nodes.LearnerKey(learnerID)
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.nodes[key]
	if !ok {
		set = make(map[string]struct{})
		t.nodes[key] = set
	}
	set[nodeID] = struct{}{}
	return nil
}

// Completed implements nodes.Tracker.
func (t *Tracker) Completed(_ context.Context, learnerID string) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.nodes[nodes.LearnerKey(learnerID)]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
