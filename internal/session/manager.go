package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/concept-modules/internal/curriculum"
	"github.com/JakeFAU/concept-modules/internal/lesson"
	"github.com/JakeFAU/concept-modules/internal/nodes"
	"github.com/JakeFAU/concept-modules/internal/progress"
)

// ErrNotFound is returned for unknown or already ended sessions.
var ErrNotFound = errors.New("session not found")

const (
	defaultIdleTTL        = 30 * time.Minute
	defaultTrackerTimeout = 5 * time.Second
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session ids.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// Config wires a Manager's collaborators. Only Clock and IDs are required.
type Config struct {
	Clock Clock
	IDs   IDGenerator
	// Emitter receives lesson events; defaults to progress.NopEmitter.
	Emitter progress.Emitter
	// Tracker is marked with the module id when a module completes.
	Tracker nodes.Tracker
	// IdleTTL is how long a session may go untouched before Sweep ends it.
	IdleTTL time.Duration
	// TrackerTimeout bounds each background tracker call.
	TrackerTimeout time.Duration
	Logger         *zap.Logger
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	SessionID uuid.UUID
	ModuleID  string
	LearnerID string
	StartedAt time.Time
	View      lesson.View
}

// NextResult reports the outcome of a next-module request. NextSessionID is
// nil when the request was not honoured.
type NextResult struct {
	Snapshot
	NextModuleID  string
	NextSessionID *uuid.UUID
}

// Manager owns every live session.
type Manager struct {
	catalog *curriculum.Catalog
	cfg     Config
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	background sync.WaitGroup
}

// Session is one controller instance plus the identity it was opened with.
type Session struct {
	id        uuid.UUID
	module    curriculum.Module
	learnerID string
	startedAt time.Time
	lastSeen  atomic.Int64

	mu    sync.Mutex
	ctrl  *lesson.Controller
	ended bool
	// navigated holds the session opened by the navigation hook during the
	// current Next call.
	navigated *Session
	navErr    error
}

// NewManager constructs a Manager over a validated catalog.
func NewManager(catalog *curriculum.Catalog, cfg Config) (*Manager, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.IDs == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if cfg.Emitter == nil {
		cfg.Emitter = progress.NopEmitter{}
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.TrackerTimeout <= 0 {
		cfg.TrackerTimeout = defaultTrackerTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger.Named("session"),
		sessions: make(map[uuid.UUID]*Session),
	}, nil
}

// Catalog returns the catalog sessions are opened against.
func (m *Manager) Catalog() *curriculum.Catalog {
	return m.catalog
}

// Open starts a session at the first unit of moduleID.
func (m *Manager) Open(moduleID, learnerID string) (Snapshot, error) {
	s, err := m.open(moduleID, learnerID)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

func (m *Manager) open(moduleID, learnerID string) (*Session, error) {
	mod, err := m.catalog.Module(moduleID)
	if err != nil {
		return nil, err
	}
	id, err := m.cfg.IDs.NewRawID()
	if err != nil {
		return nil, fmt.Errorf("new session id: %w", err)
	}
	now := m.cfg.Clock.Now()
	s := &Session{
		id:        id,
		module:    mod,
		learnerID: learnerID,
		startedAt: now,
	}
	s.lastSeen.Store(now.UnixNano())
	s.ctrl = lesson.New(mod.Units, m.hooks(s))
	m.emit(s, progress.StageSessionStart, "", "")

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Debug("session opened",
		zap.String("session_id", id.String()),
		zap.String("module_id", mod.ID),
		zap.String("learner_id", learnerID),
	)
	return s, nil
}

// hooks translates controller callbacks into events. They run with s.mu held.
func (m *Manager) hooks(s *Session) lesson.Hooks {
	return lesson.Hooks{
		OnUnitActivated: func(unitID string) {
			m.emit(s, progress.StageUnitActivated, unitID, "")
		},
		OnUnitCompleted: func(unitID string) {
			m.emit(s, progress.StageUnitCompleted, unitID, "")
		},
		OnModuleComplete: func() {
			m.emit(s, progress.StageModuleCompleted, "", "")
			m.markNode(s.learnerID, s.module.ID)
		},
		OnNavigateToNextModule: func(next string) {
			m.emit(s, progress.StageNavigateNext, "", next)
			s.navigated, s.navErr = m.open(next, s.learnerID)
		},
	}
}

func (m *Manager) markNode(learnerID, moduleID string) {
	if m.cfg.Tracker == nil {
		return
	}
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TrackerTimeout)
		defer cancel()
		if err := m.cfg.Tracker.MarkComplete(ctx, learnerID, moduleID); err != nil {
			m.logger.Warn("mark node complete failed",
				zap.String("module_id", moduleID),
				zap.String("learner_id", learnerID),
				zap.Error(err),
			)
		}
	}()
}

func (m *Manager) emit(s *Session, stage progress.Stage, unitID, next string) {
	now := m.cfg.Clock.Now()
	m.cfg.Emitter.Emit(progress.Event{
		SessionID:    progress.UUIDToBytes(s.id),
		TS:           now,
		Stage:        stage,
		ModuleID:     s.module.ID,
		LearnerID:    s.learnerID,
		UnitID:       unitID,
		NextModuleID: next,
		Completed:    s.ctrl.CompletedCount(),
		Total:        s.module.Units.Len(),
		Dur:          max(now.Sub(s.startedAt), 0),
	})
}

// Get returns the current view of a session.
func (m *Manager) Get(id uuid.UUID) (Snapshot, error) {
	return m.do(id, func(*lesson.Controller) {})
}

// Select jumps to unitID. Unknown units leave the view unchanged.
func (m *Manager) Select(id uuid.UUID, unitID string) (Snapshot, error) {
	return m.do(id, func(c *lesson.Controller) { c.SelectUnit(unitID) })
}

// Complete marks unitID (or the active unit when empty) complete.
func (m *Manager) Complete(id uuid.UUID, unitID string) (Snapshot, error) {
	return m.do(id, func(c *lesson.Controller) { c.MarkComplete(unitID) })
}

// Advance completes the active unit and moves forward.
func (m *Manager) Advance(id uuid.UUID) (Snapshot, error) {
	return m.do(id, (*lesson.Controller).Advance)
}

// Retreat moves back one unit.
func (m *Manager) Retreat(id uuid.UUID) (Snapshot, error) {
	return m.do(id, (*lesson.Controller).Retreat)
}

// Next requests navigation to the module's configured next module. Off the
// last unit, or for a module without a successor, the session is left as the
// controller leaves it and no new session is opened.
func (m *Manager) Next(id uuid.UUID) (NextResult, error) {
	s, err := m.lookup(id)
	if err != nil {
		return NextResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return NextResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.touch(m.cfg.Clock.Now())
	s.navigated, s.navErr = nil, nil
	s.ctrl.RequestNextModule(s.module.Next)

	res := NextResult{Snapshot: s.snapshot()}
	next, navErr := s.navigated, s.navErr
	s.navigated, s.navErr = nil, nil
	if navErr != nil {
		return res, fmt.Errorf("open next module %q: %w", s.module.Next, navErr)
	}
	if next != nil {
		nid := next.id
		res.NextSessionID = &nid
		res.NextModuleID = next.module.ID
	}
	return res, nil
}

// End discards the session and its progress.
func (m *Manager) End(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.finish(s, "ended")
	return nil
}

func (m *Manager) finish(s *Session, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	m.emit(s, progress.StageSessionEnd, "", "")
	m.logger.Debug("session closed",
		zap.String("session_id", s.id.String()),
		zap.String("module_id", s.module.ID),
		zap.String("reason", reason),
	)
}

// Sweep ends sessions idle for longer than the configured TTL and returns
// how many were removed.
func (m *Manager) Sweep() int {
	cutoff := m.cfg.Clock.Now().Add(-m.cfg.IdleTTL).UnixNano()
	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.lastSeen.Load() < cutoff {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range idle {
		m.finish(s, "idle")
	}
	if len(idle) > 0 {
		m.logger.Info("swept idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is canceled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close ends every session and waits for background tracker calls.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		m.finish(s, "shutdown")
	}
	m.background.Wait()
}

func (m *Manager) do(id uuid.UUID, op func(*lesson.Controller)) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.touch(m.cfg.Clock.Now())
	op(s.ctrl)
	return s.snapshot(), nil
}

func (m *Manager) lookup(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// snapshot must be called with s.mu held.
func (s *Session) snapshot() Snapshot {
	return Snapshot{
		SessionID: s.id,
		ModuleID:  s.module.ID,
		LearnerID: s.learnerID,
		StartedAt: s.startedAt,
		View:      lesson.Render(s.module.Units, s.ctrl.State()),
	}
}
