package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/concept-modules/internal/content"
	"github.com/JakeFAU/concept-modules/internal/curriculum"
	"github.com/JakeFAU/concept-modules/internal/lesson"
	"github.com/JakeFAU/concept-modules/internal/metrics"
	"github.com/JakeFAU/concept-modules/internal/session"
)

const maxBodyBytes = 1 << 16

func (s *Server) listModules(w http.ResponseWriter, _ *http.Request) {
	mods := s.sessions.Catalog().Modules()
	out := make([]moduleDTO, 0, len(mods))
	for _, m := range mods {
		out = append(out, toModuleDTO(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": out})
}

func (s *Server) getModule(w http.ResponseWriter, r *http.Request) {
	m, err := s.sessions.Catalog().Module(chi.URLParam(r, "module_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"module": toModuleDTO(m)})
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	snap, err := s.sessions.Open(chi.URLParam(r, "module_id"), req.LearnerID)
	if err != nil {
		if errors.Is(err, curriculum.ErrUnknownModule) {
			metrics.ObserveSessionOperation("open", "not_found")
			writeError(w, http.StatusNotFound, "module not found")
			return
		}
		metrics.ObserveSessionOperation("open", "error")
		s.logger.Error("open session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}
	metrics.ObserveSessionOperation("open", "ok")
	metrics.SetLiveSessions(s.sessions.Len())
	writeJSON(w, http.StatusCreated, toSessionDTO(snap))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, "get", func(id uuid.UUID) (session.Snapshot, error) {
		return s.sessions.Get(id)
	})
}

func (s *Server) selectUnit(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.sessionOp(w, r, "select", func(id uuid.UUID) (session.Snapshot, error) {
		return s.sessions.Select(id, req.UnitID)
	})
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, "advance", s.sessions.Advance)
}

func (s *Server) retreat(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, "retreat", s.sessions.Retreat)
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.sessionOp(w, r, "complete", func(id uuid.UUID) (session.Snapshot, error) {
		return s.sessions.Complete(id, req.UnitID)
	})
}

func (s *Server) next(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	res, err := s.sessions.Next(id)
	if err != nil {
		s.sessionErr(w, "next", err)
		return
	}
	dto := nextDTO{sessionDTO: toSessionDTO(res.Snapshot)}
	if res.NextSessionID != nil {
		dto.NextSessionID = res.NextSessionID.String()
		dto.NextModuleID = res.NextModuleID
	}
	metrics.ObserveSessionOperation("next", "ok")
	metrics.SetLiveSessions(s.sessions.Len())
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.End(id); err != nil {
		s.sessionErr(w, "end", err)
		return
	}
	metrics.ObserveSessionOperation("end", "ok")
	metrics.SetLiveSessions(s.sessions.Len())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unitContent(w http.ResponseWriter, r *http.Request) {
	if s.content == nil {
		writeError(w, http.StatusServiceUnavailable, "content store unavailable")
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	snap, err := s.sessions.Get(id)
	if err != nil {
		s.sessionErr(w, "content", err)
		return
	}
	payload, err := s.content.Render(r.Context(), snap.ModuleID, chi.URLParam(r, "unit_id"))
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			metrics.ObserveContentFetch(snap.ModuleID, "not_found", 0)
			writeError(w, http.StatusNotFound, "content not found")
			return
		}
		metrics.ObserveContentFetch(snap.ModuleID, "error", 0)
		s.logger.Error("render content failed",
			zap.String("module_id", snap.ModuleID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load content")
		return
	}
	if payload.ETag != "" {
		w.Header().Set("ETag", payload.ETag)
		if r.Header.Get("If-None-Match") == payload.ETag {
			metrics.ObserveContentFetch(snap.ModuleID, "not_modified", 0)
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	metrics.ObserveContentFetch(snap.ModuleID, "ok", len(payload.Body))
	w.Header().Set("Content-Type", payload.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload.Body); err != nil {
		s.logger.Warn("write content failed", zap.Error(err))
	}
}

func (s *Server) learnerNodes(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "node tracker unavailable")
		return
	}
	learner := chi.URLParam(r, "learner_id")
	got, err := s.tracker.Completed(r.Context(), learner)
	if err != nil {
		s.logger.Error("list completed nodes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list nodes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"learner_id": learner, "nodes": got})
}

func (s *Server) sessionOp(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(uuid.UUID) (session.Snapshot, error),
) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	snap, err := fn(id)
	if err != nil {
		s.sessionErr(w, op, err)
		return
	}
	metrics.ObserveSessionOperation(op, "ok")
	writeJSON(w, http.StatusOK, toSessionDTO(snap))
}

func (s *Server) sessionErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, session.ErrNotFound) {
		metrics.ObserveSessionOperation(op, "not_found")
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	metrics.ObserveSessionOperation(op, "error")
	s.logger.Error("session operation failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "session operation failed")
}

// sessionID parses the session_id URL parameter, answering 400 when it is malformed.
func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := parseSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return uuid.UUID{}, false
	}
	return id, true
}

// decodeOptional decodes a JSON body into dst; an empty body leaves dst untouched.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type openSessionRequest struct {
	LearnerID string `json:"learner_id"`
}

type unitRequest struct {
	UnitID string `json:"unit_id"`
}

type moduleDTO struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Next        string            `json:"next,omitempty"`
	Mode        lesson.Mode       `json:"mode"`
	Units       []curriculum.Unit `json:"units,omitempty"`
}

func toModuleDTO(m curriculum.Module) moduleDTO {
	dto := moduleDTO{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Next:        m.Next,
		Mode:        lesson.ModeTabbed,
		Units:       m.Units.Units(),
	}
	if m.SingleContent() {
		dto.Mode = lesson.ModeSingle
	}
	return dto
}

type sessionDTO struct {
	SessionID string      `json:"session_id"`
	ModuleID  string      `json:"module_id"`
	LearnerID string      `json:"learner_id,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	View      lesson.View `json:"view"`
}

func toSessionDTO(snap session.Snapshot) sessionDTO {
	return sessionDTO{
		SessionID: snap.SessionID.String(),
		ModuleID:  snap.ModuleID,
		LearnerID: snap.LearnerID,
		StartedAt: snap.StartedAt,
		View:      snap.View,
	}
}

type nextDTO struct {
	sessionDTO
	NextSessionID string `json:"next_session_id,omitempty"`
	NextModuleID  string `json:"next_module_id,omitempty"`
}
