package handler

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/syncdata/cdc-relay/internal/deadletter"
	pkglog "github.com/syncdata/cdc-relay/pkg/log"
	"github.com/syncdata/cdc-relay/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DeadLetterLister returns the most recent dead-letter records.
type DeadLetterLister interface {
	Recent(ctx context.Context, n int64) ([]*deadletter.Record, error)
}

// DependencyStatus is the readiness of one dependency.
type DependencyStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Handler serves the operational endpoints of the relay.
type Handler struct {
	checks       map[string]Pinger
	checkTimeout time.Duration
	metrics      http.Handler
	deadLetters  DeadLetterLister
}

// NewHandler creates a new HTTP handler. deadLetters may be nil when the
// dead-letter driver cannot be listed.
func NewHandler(checks map[string]Pinger, checkTimeout time.Duration, metrics http.Handler, deadLetters DeadLetterLister) *Handler {
	if checkTimeout <= 0 {
		checkTimeout = 2 * time.Second
	}
	return &Handler{
		checks:       checks,
		checkTimeout: checkTimeout,
		metrics:      metrics,
		deadLetters:  deadLetters,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
	if h.deadLetters != nil {
		r.GET("/deadletter", h.RecentDeadLetters)
	}
	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})
}

// Health handles GET /health. It only reports that the process is up.
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// Ready handles GET /ready by pinging every dependency concurrently.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		statuses = make([]DependencyStatus, 0, len(h.checks))
		ready    = true
	)

	var g errgroup.Group
	for name, p := range h.checks {
		name, p := name, p
		g.Go(func() error {
			st := DependencyStatus{Name: name, Status: "up"}
			if err := p.Ping(ctx); err != nil {
				st.Status = "down"
				st.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, st)
			if st.Status != "up" {
				ready = false
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })

	if !ready {
		l := pkglog.Ctx(c.Request.Context())
		l.Warn().Interface("dependencies", statuses).Msg("readiness check failed")
		response.Unavailable(c, "dependency unavailable", statuses)
		return
	}
	response.Success(c, statuses)
}

// RecentDeadLetters handles GET /deadletter?limit=N.
func (h *Handler) RecentDeadLetters(c *gin.Context) {
	limit := int64(50)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 || n > 1000 {
			response.Error(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	records, err := h.deadLetters.Recent(c.Request.Context(), limit)
	if err != nil {
		l := pkglog.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("failed to list dead-letter records")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list dead-letter records")
		return
	}
	response.Success(c, records)
}
