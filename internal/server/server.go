// Package server exposes the turn pipeline over HTTP. The transport is
// deliberately thin: handlers validate input, call the orchestrator or
// store, and shape JSON. No decision logic lives here.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"arbiter/internal/analysis"
	"arbiter/internal/kernel"
	"arbiter/internal/store"
)

// Server wires the orchestrator and store behind a gin router.
type Server struct {
	orch   *kernel.Orchestrator
	store  *store.Store
	logger *zap.Logger
	reg    *prometheus.Registry
}

// New builds a server. reg may be nil to disable the metrics endpoint.
func New(orch *kernel.Orchestrator, st *store.Store, reg *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{orch: orch, store: st, logger: logger, reg: reg}
}

// Router assembles the HTTP routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	if s.reg != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.POST("/turn", s.handleTurn)
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/recover", s.handleRecover)
		api.GET("/witness", s.handleWitness)
		api.GET("/patterns/:fingerprint", s.handlePattern)

		sessions := api.Group("/sessions")
		{
			sessions.GET("/:id", s.handleGetSession)
			sessions.GET("/:id/ledger", s.handleLedger)
			sessions.GET("/:id/audit", s.handleAudit)
			sessions.POST("/:id/resume", s.handleResume)
			sessions.POST("/:id/reset", s.handleReset)
			sessions.POST("/:id/close", s.handleClose)
		}
	}
	return router
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"service":   "arbiter",
		"status":    "online",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": "healthy"})
}

type turnRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Text      string `json:"text"`
}

func (s *Server) handleTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	result, err := s.orch.ProcessTurn(req.SessionID, req.Text)
	if err != nil {
		s.logger.Error("turn failed", zap.String("session", req.SessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "turn processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

type analyzeRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

// handleAnalyze runs the stateless analyzer only; nothing is persisted.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	mode := s.orch.Mode()
	if req.Mode != "" {
		mode = analysis.ParseMode(req.Mode)
	}
	res := s.orch.Ruleset().Analyze(req.Text, mode)
	c.JSON(http.StatusOK, gin.H{"ok": true, "analysis": res})
}

type recoverRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	ShelfID   string `json:"shelf_id" binding:"required"`
	Note      string `json:"note" binding:"required"`
}

func (s *Server) handleRecover(c *gin.Context) {
	var req recoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	ok, err := s.orch.Recover(req.SessionID, req.ShelfID, req.Note)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

// handlePattern reports how often a friction fingerprint has recurred
// across the audit trail.
func (s *Server) handlePattern(c *gin.Context) {
	rec, err := s.store.LookupPattern(c.Param("fingerprint"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "pattern not seen"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pattern": rec})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.store.GetSession(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": sess})
}

// handleLedger lists the session's spine tensors, newest first.
func (s *Server) handleLedger(c *gin.Context) {
	limit := 50
	spine, err := s.store.RecentSpine(c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"session_id": c.Param("id"),
		"count":      len(spine),
		"tensors":    spine,
	})
}

func (s *Server) handleAudit(c *gin.Context) {
	events, err := s.store.RecentAudit(c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "events": events})
}

type resumeRequest struct {
	Note string `json:"note" binding:"required"`
}

func (s *Server) handleResume(c *gin.Context) {
	var req resumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if err := s.orch.Resume(c.Param("id"), req.Note); err != nil {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleReset(c *gin.Context) {
	purged, err := s.orch.Reset(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "purged": purged})
}

func (s *Server) handleClose(c *gin.Context) {
	if err := s.orch.CloseSession(c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
