package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/healthgate/internal/metrics"
	"github.com/loykin/healthgate/internal/report"
	"github.com/loykin/healthgate/internal/service"
	"github.com/loykin/healthgate/internal/supervisor"
)

// Router exposes the supervisor over HTTP.
// Endpoints under basePath:
//
//	POST /start   query: name=...
//	POST /stop    query: name=...&wait=5s (wait optional)
//	GET  /status  query: name=... (single) or none (all); history=N adds journal events
//	GET  /report  service states plus host resources
//	GET  /healthz aggregate stack health
//	GET  /metrics Prometheus metrics (when enabled)
type Router struct {
	sup         *supervisor.Supervisor
	rep         *report.Reporter
	basePath    string
	withMetrics bool
}

func NewRouter(sup *supervisor.Supervisor, rep *report.Reporter, basePath string, withMetrics bool) *Router {
	return &Router{sup: sup, rep: rep, basePath: sanitizeBase(basePath), withMetrics: withMetrics}
}

// Handler returns a gin-powered http.Handler mountable in any mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.GET("/status", r.handleStatus)
	group.GET("/report", r.handleReport)
	group.GET("/healthz", r.handleHealthz)
	if r.withMetrics {
		group.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer runs a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK    bool          `json:"ok"`
	State service.State `json:"state"`
}

func (r *Router) handleStart(c *gin.Context) {
	name := c.Query("name")
	if !service.IsSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required: allowed [A-Za-z0-9._-]"})
		return
	}
	st, err := r.sup.Start(c.Request.Context(), name)
	if err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true, State: st})
}

func (r *Router) handleStop(c *gin.Context) {
	name := c.Query("name")
	if !service.IsSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required: allowed [A-Za-z0-9._-]"})
		return
	}
	var wait time.Duration
	if ws := c.Query("wait"); ws != "" {
		if d, err := time.ParseDuration(ws); err == nil {
			wait = d
		}
	}
	if err := r.sup.Stop(name, wait); err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	st, _ := r.sup.Status(name)
	writeJSON(c, http.StatusOK, okResp{OK: true, State: st})
}

func (r *Router) handleStatus(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusOK, r.sup.StatusAll())
		return
	}
	if !service.IsSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name"})
		return
	}
	st, err := r.sup.Status(name)
	if err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	if hs := c.Query("history"); hs != "" {
		limit, _ := strconv.Atoi(hs)
		events, err := r.sup.History(c.Request.Context(), name, limit)
		if err != nil {
			writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusOK, gin.H{"state": st, "history": events})
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleReport(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.rep.Snapshot())
}

// handleHealthz aggregates per-service health into one stack-level answer:
// 200 when every registered service is running, 503 otherwise.
func (r *Router) handleHealthz(c *gin.Context) {
	states := r.sup.StatusAll()
	perService := make(map[string]string, len(states))
	allUp := true
	for _, st := range states {
		perService[st.Name] = string(st.Status)
		if !st.Healthy() {
			allUp = false
		}
	}
	code := http.StatusOK
	overall := "healthy"
	if !allUp {
		code = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(c, code, gin.H{
		"status":    overall,
		"services":  perService,
		"timestamp": time.Now().UTC(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownService):
		return http.StatusNotFound
	case service.IsOperationInProgress(err):
		return http.StatusConflict
	case service.IsDependencyNotRunning(err):
		return http.StatusConflict
	case service.IsStartTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
