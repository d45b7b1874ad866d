package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/concept-modules/internal/progress"
)

// PrometheusSink exports lesson progress metrics via Prometheus. It owns all
// collectors for sessions, unit and module completions, and navigation.
type PrometheusSink struct {
	sessionsStarted  *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
	unitsActivated   *prometheus.CounterVec
	unitsCompleted   *prometheus.CounterVec
	modulesCompleted *prometheus.CounterVec
	navigations      *prometheus.CounterVec
	moduleDuration   *prometheus.HistogramVec

	tracker *sessionTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lesson_sessions_started_total",
			Help: "Total lesson sessions opened per module.",
		}, []string{"module"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lesson_sessions_active",
			Help: "Current number of open lesson sessions.",
		}),
		unitsActivated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lesson_units_activated_total",
			Help: "Unit activations partitioned by module.",
		}, []string{"module"}),
		unitsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lesson_units_completed_total",
			Help: "Unit completions partitioned by module.",
		}, []string{"module"}),
		modulesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lesson_modules_completed_total",
			Help: "Sessions that completed every unit of a module.",
		}, []string{"module"}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lesson_navigations_total",
			Help: "Next-module navigations partitioned by source and target module.",
		}, []string{"module", "next_module"}),
		moduleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lesson_module_completion_seconds",
			Help:    "Time from session start to module completion.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		}, []string{"module"}),
		tracker: newSessionTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsActive,
		s.unitsActivated,
		s.unitsCompleted,
		s.modulesCompleted,
		s.navigations,
		s.moduleDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register lesson collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	module := evt.ModuleID
	if module == "" {
		module = "unknown"
	}
	switch evt.Stage {
	case progress.StageSessionStart:
		s.sessionsStarted.WithLabelValues(module).Inc()
		if s.tracker.start(evt.SessionID) {
			s.sessionsActive.Inc()
		}
	case progress.StageSessionEnd:
		if s.tracker.end(evt.SessionID) {
			s.sessionsActive.Dec()
		}
	case progress.StageUnitActivated:
		s.unitsActivated.WithLabelValues(module).Inc()
	case progress.StageUnitCompleted:
		s.unitsCompleted.WithLabelValues(module).Inc()
	case progress.StageModuleCompleted:
		s.modulesCompleted.WithLabelValues(module).Inc()
		if evt.Dur > 0 {
			s.moduleDuration.WithLabelValues(module).Observe(evt.Dur.Seconds())
		}
	case progress.StageNavigateNext:
		s.navigations.WithLabelValues(module, evt.NextModuleID).Inc()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type sessionTracker struct {
	mu   sync.Mutex
	open map[[16]byte]struct{}
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{open: make(map[[16]byte]struct{})}
}

func (t *sessionTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.open[id]; ok {
		return false
	}
	t.open[id] = struct{}{}
	return true
}

func (t *sessionTracker) end(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.open[id]; !ok {
		return false
	}
	delete(t.open, id)
	return true
}
