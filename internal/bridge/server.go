package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/nhle/mailbar/internal/model"
)

// maxRequestBytes bounds a bridge request body.
const maxRequestBytes = 1 << 20

// requestTimeout bounds a single bridge request. Interactive sign-in is
// the slowest action.
const requestTimeout = 5 * time.Minute

// NotificationStore gives the toolbar UI access to raised notifications.
type NotificationStore interface {
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Server exposes a Dispatcher over local HTTP for the toolbar UI.
type Server struct {
	dispatcher     *Dispatcher
	notifications  NotificationStore
	allowedOrigins []string
	log            zerolog.Logger
}

// NewServer creates a Server. allowedOrigins lists the extension origins
// permitted to call the bridge.
func NewServer(
	d *Dispatcher,
	notifications NotificationStore,
	allowedOrigins []string,
	log zerolog.Logger,
) *Server {
	return &Server{
		dispatcher:     d,
		notifications:  notifications,
		allowedOrigins: allowedOrigins,
		log:            log,
	}
}

// Router creates and configures the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.requireAllowedOrigin)

	r.Get("/healthz", s.healthz)
	r.Get("/actions", s.listActions)
	r.With(middleware.AllowContentType("application/json")).Post("/bridge", s.handleBridge)

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", s.listNotifications)
		r.Post("/{id}/read", s.markNotificationRead)
	})

	return r
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", middleware.GetReqID(r.Context())).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}

// requireAllowedOrigin answers 403 to browser requests from an origin
// outside allowedOrigins. Requests without an Origin header pass.
func (s *Server) requireAllowedOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !originAllowed(s.allowedOrigins, origin) {
			s.log.Warn().Str("origin", origin).Str("path", r.URL.Path).Msg("rejected foreign origin")
			writeJSON(w, http.StatusForbidden, Response{Error: "origin not allowed"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed matches origin against patterns the way the CORS handler
// does: case-insensitive, with at most one "*" wildcard per pattern.
func originAllowed(patterns []string, origin string) bool {
	origin = strings.ToLower(origin)
	for _, p := range patterns {
		p = strings.ToLower(p)
		if p == "*" || p == origin {
			return true
		}
		if i := strings.IndexByte(p, '*'); i >= 0 {
			prefix, suffix := p[:i], p[i+1:]
			if len(origin) >= len(prefix)+len(suffix) &&
				strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
				return true
			}
		}
	}
	return false
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) listActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Actions())
}

// handleBridge decodes a Request, dispatches it and writes the Response.
// Failed actions still answer 200; the error travels in the body.
func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, s.dispatcher.Dispatch(r.Context(), req))
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.notifications.GetUnreadNotifications(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("listing notifications failed")
		writeJSON(w, http.StatusInternalServerError, Response{Error: "failed to list notifications"})
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.notifications.MarkNotificationRead(r.Context(), id); err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("marking notification read failed")
		writeJSON(w, http.StatusInternalServerError, Response{Error: "failed to mark notification read"})
		return
	}
	writeJSON(w, http.StatusOK, success{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
