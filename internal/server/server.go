// Package server exposes read-only catalog state and a few named actions
// over HTTP for operators.
package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/danmuck/catalogsync/internal/catalog"
	"github.com/danmuck/catalogsync/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	ErrSideNotFound   = errors.New("side not found")
	ErrActionNotFound = errors.New("action not found")
)

// Action is an operator command such as stepping a simulation one tick.
type Action func() (string, error)

// Admin serves catalog managers by side name. Catalogs are not safe for
// concurrent use, so every handler and every Guard call share one lock.
type Admin struct {
	ID       string
	Addr     string
	Appeared time.Time

	mu      sync.Mutex
	sides   map[string]*catalog.Manager
	actions map[string]Action
	router  *gin.Engine
}

func Appear(id, addr string, corsOrigins []string) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Admin{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		sides:    make(map[string]*catalog.Manager),
		actions:  make(map[string]Action),
		router:   r,
	}
}

func (a *Admin) HTTPRouter() *gin.Engine {
	return a.router
}

// AttachSide publishes m under side, e.g. "producer" or "consumer".
func (a *Admin) AttachSide(side string, m *catalog.Manager) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sides[side] = m
}

// RegisterAction makes fn reachable at POST /actions/:name. It runs under
// the admin lock.
func (a *Admin) RegisterAction(name string, fn Action) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions[name] = fn
}

// Guard runs fn under the lock handlers read catalogs with.
func (a *Admin) Guard(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn()
}

func (a *Admin) Sides() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.sides))
	for side := range a.sides {
		out = append(out, side)
	}
	slices.Sort(out)
	return out
}

func (a *Admin) ExecuteAction(name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	action, ok := a.actions[name]
	if !ok {
		return "", ErrActionNotFound
	}
	out, err := action()
	if err != nil {
		log.Error().Str("admin", a.ID).Str("action", name).Err(err).Msg("admin action failed")
		return "", err
	}
	log.Info().Str("admin", a.ID).Str("action", name).Msg("admin action executed")
	return out, nil
}

// Serve runs the HTTP server until ctx is done, then shuts it down.
func (a *Admin) Serve(ctx context.Context) error {
	a.RegisterRoutes()
	srv := &http.Server{Addr: a.Addr, Handler: a.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("admin", a.ID).Str("addr", a.Addr).Msg("admin listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
