// Package server exposes the health check and the Telegram webhook over
// HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/nhle/dojobot/internal/logging"
	"github.com/nhle/dojobot/internal/telegram"
)

// SecretHeader carries the secret token Telegram echoes on webhook calls.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// UpdateHandler consumes webhook deliveries.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd telegram.Update) error
}

type handler struct {
	updates UpdateHandler
	secret  string
	log     logrus.FieldLogger
}

// NewRouter returns the HTTP routes. A nil updates handler leaves the
// webhook route out, as in polling mode.
func NewRouter(updates UpdateHandler, secret string, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = logging.Discard()
	}
	h := &handler{updates: updates, secret: secret, log: logging.Component(log, "http")}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	if updates != nil {
		r.Post("/telegram/webhook", h.webhook)
	}
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// webhook handles one update. Handler failures are logged and still
// acknowledged so Telegram does not redeliver the update.
func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid secret token"})
			return
		}
	}

	var upd telegram.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid update"})
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if err := h.updates.HandleUpdate(ctx, upd); err != nil {
		logging.LogError(h.log, "webhook_update_failed", err, logrus.Fields{"update_id": upd.UpdateID})
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server wraps an http.Server with start and graceful stop.
type Server struct {
	http *http.Server
}

func New(addr string, h http.Handler) *Server {
	return &Server{http: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
