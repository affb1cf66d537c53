package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avogel/teamap/internal/domain"
	"github.com/avogel/teamap/internal/remote"
	appsync "github.com/avogel/teamap/internal/sync"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"degraded": s.session.Degraded(),
	})
}

func (s *Server) handleListTeas(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.LoadAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCreateTea(w http.ResponseWriter, r *http.Request) {
	var tea domain.Tea
	if err := json.NewDecoder(r.Body).Decode(&tea); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	saved, err := s.session.SaveTea(r.Context(), tea)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateTea(w http.ResponseWriter, r *http.Request) {
	var tea domain.Tea
	if err := json.NewDecoder(r.Body).Decode(&tea); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	// The path is authoritative for which record is being updated.
	tea.ID = chi.URLParam(r, "id")

	saved, err := s.session.SaveTea(r.Context(), tea)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteTea(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteTea(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHideStarter(w http.ResponseWriter, r *http.Request) {
	if err := s.session.HideStarter(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnhideStarter(w http.ResponseWriter, r *http.Request) {
	if err := s.session.UnhideStarter(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "suggestions not configured"})
		return
	}

	var tea domain.Tea
	if err := json.NewDecoder(r.Body).Decode(&tea); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	notes, err := s.suggester.TastingNotes(r.Context(), tea)
	if err != nil {
		s.logger.Error("suggestion failed", "tea", tea.Name, "error", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "suggestion failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"notes": notes})
}

// writeError maps domain and remote failures to status codes. Transient
// remote failures never reach here: the session absorbs them and serves
// from the cache instead.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, appsync.ErrNotLoaded):
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case remote.IsRejected(err):
		s.logger.Error("remote rejected request", "error", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "remote store rejected the request"})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
