package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/fertilitypoint/leadrelay/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListAll(r.Context())
	if err != nil {
		s.logger.Error("failed to list chats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch chats"})
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	conv, err := s.store.Get(r.Context(), chatID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chat not found"})
		return
	}
	if err != nil {
		s.logger.Error("failed to fetch chat", "chat_id", chatID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch chat"})
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("logout requested, recreating session")

	if err := s.session.Recreate(r.Context()); err != nil {
		// Advisory only: a new session was still started where possible.
		s.logger.Error("logout completed with errors", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "logout completed with errors, but a new session was started",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) testLeads(w http.ResponseWriter, r *http.Request) {
	if err := s.trigger.RunCycle(r.Context()); err != nil {
		s.logger.Error("on-demand extraction cycle failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to trigger lead extraction"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "lead extraction cycle triggered"})
}
