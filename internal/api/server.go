package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/fertilitypoint/leadrelay/internal/chat"
)

// ConversationReader is the read-only store surface the API exposes.
type ConversationReader interface {
	ListAll(ctx context.Context) ([]chat.Conversation, error)
	Get(ctx context.Context, chatID string) (chat.Conversation, error)
}

// SessionController tears down and rebuilds the messaging session.
type SessionController interface {
	Recreate(ctx context.Context) error
}

// CycleTrigger runs one on-demand extraction cycle.
type CycleTrigger interface {
	RunCycle(ctx context.Context) error
}

type Server struct {
	router  *chi.Mux
	port    int
	store   ConversationReader
	session SessionController
	trigger CycleTrigger
	logger  *slog.Logger
}

func NewServer(port int, store ConversationReader, session SessionController, trigger CycleTrigger, ws http.Handler, frontendDir string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		store:   store,
		session: session,
		trigger: trigger,
		logger:  logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/chats", s.listChats)
	router.Get("/api/chats/{chatID}", s.getChat)
	router.Post("/api/logout", s.logout)
	router.Post("/api/test-leads", s.testLeads)
	if ws != nil {
		router.Get("/ws", ws.ServeHTTP)
	}
	if frontendDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(frontendDir)))
	}

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}
