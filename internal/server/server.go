// Package server exposes a permission Manager over HTTP, with a websocket
// feed of authorization changes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/go-drift/permissions/pkg/permission"
	"github.com/go-drift/permissions/pkg/platform"
)

// DefaultRequestTimeout bounds how long a request call waits for its batch.
const DefaultRequestTimeout = 30 * time.Second

const changeBuffer = 32

// API serves a permission Manager over HTTP.
type API struct {
	manager        *permission.Manager
	logger         *slog.Logger
	requestTimeout time.Duration
	upgrader       websocket.Upgrader
}

// New returns an API for m. A non-positive requestTimeout uses
// DefaultRequestTimeout.
func New(m *permission.Manager, logger *slog.Logger, requestTimeout time.Duration) *API {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &API{
		manager:        m,
		logger:         logger,
		requestTimeout: requestTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the router with middleware and all routes mounted.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)

	r.Get("/api/permissions/changes", a.watchChanges)

	r.Group(func(r chi.Router) {
		// Request calls wait on the batch; leave them room past their own deadline.
		r.Use(middleware.Timeout(a.requestTimeout + 5*time.Second))

		r.Get("/healthz", a.health)
		r.Route("/api", func(api chi.Router) {
			api.Get("/permissions", a.listPermissions)
			api.Get("/permissions/{capability}", a.getPermission)
			api.Post("/permissions/request", a.requestPermissions)
			api.Post("/settings/open", a.openSettings)
		})
	})
	return r
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"capabilities": len(a.manager.Registry().Capabilities()),
	})
}

// listPermissions checks every supported capability, or the comma-separated
// ?capabilities= subset.
func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	caps := a.manager.Registry().Capabilities()
	if raw := strings.TrimSpace(r.URL.Query().Get("capabilities")); raw != "" {
		caps = parseList(strings.Split(raw, ","))
	}
	result, err := a.manager.CheckAll(r.Context(), caps)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "check_canceled", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": result})
}

func (a *API) getPermission(w http.ResponseWriter, r *http.Request) {
	c := permission.ParseCapability(chi.URLParam(r, "capability"))
	_, supported := a.manager.Registry().Resolve(c)
	writeJSON(w, http.StatusOK, map[string]any{
		"capability": c,
		"status":     a.manager.CheckStatus(c),
		"supported":  supported,
	})
}

type requestPayload struct {
	Permissions []string `json:"permissions"`
}

func (a *API) requestPermissions(w http.ResponseWriter, r *http.Request) {
	var payload requestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	result, err := a.manager.Request(ctx, parseList(payload.Permissions)...)
	switch {
	case errors.Is(err, platform.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "request_timeout", "Platform did not answer in time")
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "request_canceled", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": result})
}

func (a *API) openSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"opened": a.manager.OpenAppSettings(r.Context())})
}

// watchChanges streams permission.Change messages until the client goes
// away. Slow clients lose changes rather than blocking the bridge.
func (a *API) watchChanges(w http.ResponseWriter, r *http.Request) {
	changes := make(chan permission.Change, changeBuffer)
	// Subscribe before the handshake completes so no change after it is lost.
	unsubscribe := a.manager.Listen(func(c permission.Change) {
		select {
		case changes <- c:
		default:
			a.logger.Warn("change dropped for slow client", "capability", c.Capability)
		}
	})
	defer unsubscribe()

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case c := <-changes:
			if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				return
			}
			if err := conn.WriteJSON(c); err != nil {
				a.logger.Debug("websocket write failed", "err", err)
				return
			}
		}
	}
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info(
			"http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func parseList(names []string) []permission.Capability {
	caps := make([]permission.Capability, 0, len(names))
	for _, n := range names {
		if c := permission.ParseCapability(n); c != "" {
			caps = append(caps, c)
		}
	}
	return caps
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// RunServer serves until ctx ends, then shuts down gracefully.
func RunServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "err", err)
			return err
		}
		return nil
	}
}
