package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/upkeep/internal/history"
	"github.com/loykin/upkeep/internal/metrics"
	"github.com/loykin/upkeep/internal/orchestrator"
	"github.com/loykin/upkeep/internal/schedule"
	"github.com/loykin/upkeep/internal/source"
)

// Router provides embeddable HTTP handlers for driving update runs.
// Endpoints:
//
//	POST {basePath}/run           body: optional Options JSON overrides
//	POST {basePath}/cancel        cancel the whole in-flight run
//	POST {basePath}/skip          query: source=... (omit for current)
//	GET  {basePath}/check         list pending updates per source
//	GET  {basePath}/status        running flag and last session
//	GET  {basePath}/history       query: limit=N&since=RFC3339
//	DELETE {basePath}/history     clear the run log
//	GET  {basePath}/schedule      current policy, state and next due
//	PUT  {basePath}/schedule      body: Policy JSON
//	GET  {basePath}/metrics       Prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	orch     *orchestrator.Orchestrator
	store    history.Store
	engine   *schedule.Engine
	defaults source.Options
	basePath string
}

// NewRouter constructs a Router. store and engine may be nil; the
// matching endpoints then answer 503.
func NewRouter(orch *orchestrator.Orchestrator, store history.Store, engine *schedule.Engine, defaults source.Options, basePath string) *Router {
	return &Router{
		orch:     orch,
		store:    store,
		engine:   engine,
		defaults: defaults,
		basePath: sanitizeBase(basePath),
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/run", r.handleRun)
	group.POST("/cancel", r.handleCancel)
	group.POST("/skip", r.handleSkip)
	group.GET("/check", r.handleCheck)
	group.GET("/status", r.handleStatus)
	group.GET("/history", r.handleHistory)
	group.DELETE("/history", r.handleHistoryClear)
	group.GET("/schedule", r.handleScheduleGet)
	group.PUT("/schedule", r.handleSchedulePut)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type runRequest struct {
	Enabled           []string `json:"enabled"`
	Verbose           bool     `json:"verbose"`
	DryRun            bool     `json:"dry_run"`
	Exclude           []string `json:"exclude"`
	ContinueOnFailure *bool    `json:"continue_on_failure"`
}

// handleRun starts a session in the background. The response only
// acknowledges the start; progress and outcome are observed through
// /status and /history.
func (r *Router) handleRun(c *gin.Context) {
	opts := r.defaults
	if c.Request.ContentLength > 0 {
		var req runRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
		if len(req.Enabled) > 0 {
			opts.Enabled = req.Enabled
		}
		if len(req.Exclude) > 0 {
			opts.Exclude = req.Exclude
		}
		opts.Verbose = req.Verbose
		opts.DryRun = req.DryRun
		if req.ContinueOnFailure != nil {
			opts.ContinueOnFailure = *req.ContinueOnFailure
		}
	}
	if r.orch.Running() {
		writeJSON(c, http.StatusConflict, errorResp{Error: orchestrator.ErrBusy.Error()})
		return
	}
	// The run outlives the request; it must not inherit its context.
	go func() {
		_, _ = r.orch.Start(context.Background(), opts, nil)
	}()
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}

func (r *Router) handleCancel(c *gin.Context) {
	if !r.orch.Running() {
		writeJSON(c, http.StatusConflict, errorResp{Error: "no run in progress"})
		return
	}
	r.orch.CancelAll()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleSkip(c *gin.Context) {
	if !r.orch.Running() {
		writeJSON(c, http.StatusConflict, errorResp{Error: "no run in progress"})
		return
	}
	if id := c.Query("source"); id != "" {
		r.orch.Skip(id)
	} else {
		r.orch.SkipCurrent()
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleCheck(c *gin.Context) {
	enabled := r.defaults.Enabled
	if q := c.QueryArray("source"); len(q) > 0 {
		enabled = q
	}
	writeJSON(c, http.StatusOK, r.orch.Check(c.Request.Context(), enabled))
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := gin.H{"running": r.orch.Running()}
	if r.store != nil {
		if last, err := r.store.List(c.Request.Context(), 1, time.Time{}); err == nil && len(last) > 0 {
			resp["last_session"] = last[0]
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.store == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "history disabled"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := parsePositiveInt(raw)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid limit: " + raw})
			return
		}
		limit = n
	}
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid since, want RFC3339: " + raw})
			return
		}
		since = t
	}
	sessions, err := r.store.List(c.Request.Context(), limit, since)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, sessions)
}

func (r *Router) handleHistoryClear(c *gin.Context) {
	if r.store == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "history disabled"})
		return
	}
	if err := r.store.Clear(c.Request.Context()); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleScheduleGet(c *gin.Context) {
	if r.engine == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "scheduling disabled"})
		return
	}
	state, due := r.engine.Current()
	resp := gin.H{
		"policy": r.engine.Policy(),
		"state":  state,
	}
	if !due.IsZero() {
		resp["next_due"] = due
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleSchedulePut(c *gin.Context) {
	if r.engine == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "scheduling disabled"})
		return
	}
	var p schedule.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.engine.Configure(p); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	_, due := r.engine.Current()
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "next_due": due})
}
