package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/concept-modules/internal/store"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
	defaultUnitLimit    = 100
	maxUnitLimit        = 1000
	ledgerTimeout       = 3 * time.Second
)

// LedgerHandler exposes read-only completion ledger endpoints.
type LedgerHandler struct {
	repo    store.ProgressRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewLedgerHandler wires the repository and logger.
func NewLedgerHandler(repo store.ProgressRepository, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerHandler{
		repo:    repo,
		timeout: ledgerTimeout,
		logger:  logger,
	}
}

// ListSessions handles GET /v1/ledger/sessions?module_id=&limit=&offset=. It
// returns {"sessions": [...]} on success, 400 for invalid paging, 503 when the
// repo is unavailable, or 500 if the repository call fails.
func (h *LedgerHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "progress ledger unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultSessionLimit, maxSessionLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var moduleID *string
	if m := strings.TrimSpace(r.URL.Query().Get("module_id")); m != "" {
		moduleID = &m
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.repo.ListSessions(ctx, moduleID, limit, offset)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": toRunDTOs(runs),
	})
}

// GetSession handles GET /v1/ledger/sessions/{session_id}. Malformed IDs give
// 400 and store.ErrNotFound gives 404.
func (h *LedgerHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "progress ledger unavailable")
		return
	}
	id, err := parseSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("get session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": toRunDTO(run)})
}

// ListUnitCompletions handles GET /v1/ledger/sessions/{session_id}/units?limit=&offset=.
func (h *LedgerHandler) ListUnitCompletions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "progress ledger unavailable")
		return
	}
	id, err := parseSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultUnitLimit, maxUnitLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	units, err := h.repo.ListUnitCompletions(ctx, id, limit, offset)
	if err != nil {
		h.logger.Error("list unit completions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list unit completions")
		return
	}
	out := make([]unitCompletionDTO, 0, len(units))
	for _, u := range units {
		out = append(out, unitCompletionDTO{UnitID: u.UnitID, CompletedAt: u.CompletedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": out})
}

func parseSessionID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "session_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("session_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid session_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func toRunDTOs(in []store.SessionRun) []runDTO {
	out := make([]runDTO, 0, len(in))
	for _, run := range in {
		out = append(out, toRunDTO(run))
	}
	return out
}

func toRunDTO(run store.SessionRun) runDTO {
	return runDTO{
		SessionID:      run.SessionID.String(),
		ModuleID:       run.ModuleID,
		LearnerID:      run.LearnerID,
		StartedAt:      run.StartedAt,
		CompletedAt:    run.CompletedAt,
		EndedAt:        run.EndedAt,
		Status:         string(run.Status),
		UnitsTotal:     run.UnitsTotal,
		UnitsCompleted: run.UnitsCompleted,
	}
}

type runDTO struct {
	SessionID      string     `json:"session_id"`
	ModuleID       string     `json:"module_id"`
	LearnerID      string     `json:"learner_id,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Status         string     `json:"status"`
	UnitsTotal     int        `json:"units_total"`
	UnitsCompleted int        `json:"units_completed"`
}

type unitCompletionDTO struct {
	UnitID      string    `json:"unit_id"`
	CompletedAt time.Time `json:"completed_at"`
}
