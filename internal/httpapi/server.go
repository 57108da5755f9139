package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gmorelli/aria/internal/archive"
	"github.com/gmorelli/aria/internal/auth"
	"github.com/gmorelli/aria/internal/calendar"
	"github.com/gmorelli/aria/internal/config"
	"github.com/gmorelli/aria/internal/observability"
	"github.com/gmorelli/aria/internal/protocol"
	"github.com/gmorelli/aria/internal/session"
)

type Server struct {
	cfg      config.Config
	ctrl     *session.Controller
	cal      calendar.Service
	store    archive.Store
	issuer   *auth.Issuer
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	static   http.Handler
	log      zerolog.Logger
	hub      Subscriber
}

// Subscriber is the part of the broadcast hub the websocket handler
// needs.
type Subscriber interface {
	Subscribe(owner string) (<-chan protocol.Event, func())
}

func New(
	cfg config.Config,
	ctrl *session.Controller,
	hub Subscriber,
	cal calendar.Service,
	store archive.Store,
	issuer *auth.Issuer,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	return &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		hub:     hub,
		cal:     cal,
		store:   store,
		issuer:  issuer,
		metrics: metrics,
		static:  newStaticHandler(),
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections unless explicitly
				// opened up; other sites must not drive the panel.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/auth/token", s.handleIssueToken)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.issuer, func(w http.ResponseWriter, status int, msg string) {
			respondError(w, status, "unauthorized", msg)
		}))

		r.Post("/v1/assistant/start", s.handleStart)
		r.Post("/v1/assistant/input", s.handleInput)
		r.Post("/v1/assistant/stop", s.handleStop)
		r.Get("/v1/assistant/status", s.handleStatus)
		r.Get("/v1/assistant/history", s.handleHistory)
		r.Get("/v1/assistant/ws", s.handleWS)

		r.Get("/v1/calendar/today", s.handleCalendar(func(ctx context.Context) (string, error) {
			return s.cal.TodaySchedule(ctx)
		}))
		r.Get("/v1/calendar/upcoming", s.handleCalendar(func(ctx context.Context) (string, error) {
			return s.cal.UpcomingEvents(ctx, 7)
		}))
		r.Get("/v1/calendar/next-meeting", s.handleCalendar(func(ctx context.Context) (string, error) {
			return s.cal.NextMeeting(ctx)
		}))
		r.Get("/v1/calendar/free-time", s.handleCalendar(func(ctx context.Context) (string, error) {
			return s.cal.FreeTimeToday(ctx)
		}))
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"calendar": s.cal != nil,
	})
}

type tokenRequest struct {
	Owner string `json:"owner"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Owner) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "owner is required")
		return
	}

	token, expires, err := s.issuer.Issue(req.Owner)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token, Owner: req.Owner, ExpiresAt: expires})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())

	sess, err := s.ctrl.Start(r.Context(), owner)
	if err != nil {
		if errors.Is(err, session.ErrOwnerBusy) {
			respondError(w, http.StatusConflict, "session_exists", "a session is already running")
			return
		}
		respondError(w, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}
	status := http.StatusCreated
	if sess.State == session.StateError {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, sess)
}

type inputRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())

	var req inputRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	id, ok := s.ctrl.LiveSession(owner)
	if !ok {
		respondError(w, http.StatusNotFound, "no_session", "no live session; start one first")
		return
	}

	res, err := s.ctrl.SubmitInput(r.Context(), id, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrBusy):
			respondError(w, http.StatusConflict, "busy", "the assistant is speaking; try again shortly")
		case errors.Is(err, session.ErrEnded):
			respondError(w, http.StatusGone, "session_ended", "the session has ended")
		case errors.Is(err, session.ErrNotFound):
			respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "input_failed", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())

	sess, err := s.ctrl.StatusByOwner(owner)
	if err != nil {
		respondError(w, http.StatusNotFound, "no_session", "no session to stop")
		return
	}

	stopped, err := s.ctrl.Stop(r.Context(), sess.ID, "stop requested")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stop_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stopped)
}

type statusResponse struct {
	*session.Session
	IsActive bool `json:"is_active"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())

	sess, err := s.ctrl.StatusByOwner(owner)
	if err != nil {
		// No session yet is a valid status, not an error.
		respondJSON(w, http.StatusOK, map[string]any{"state": session.StateInactive, "is_active": false})
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Session: sess, IsActive: !sess.State.Terminal()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())

	entries, err := s.store.RecentEntries(r.Context(), owner, 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleCalendar(lookup func(ctx context.Context) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cal == nil {
			respondError(w, http.StatusNotImplemented, "calendar_disabled", "calendar is not configured")
			return
		}
		timeout := s.cfg.CalendarLookupTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		reply, err := lookup(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("calendar lookup failed")
			respondError(w, http.StatusBadGateway, "calendar_unavailable", "Unable to fetch calendar events.")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"reply": reply})
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
