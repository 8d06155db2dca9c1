// Package server exposes the research loop over HTTP. One POST starts a
// session and streams its steps back as server-sent events until the
// terminal step arrives.
package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quaneh2/research-agent/agent"
	"github.com/quaneh2/research-agent/llm"
)

// Server holds the shared dependencies each research session is built from.
type Server struct {
	client     llm.Client
	dispatcher *agent.Dispatcher
	cfg        agent.Config
	engine     *gin.Engine
}

// ResearchRequest is the POST /api/research body.
type ResearchRequest struct {
	Question string `json:"question"`
}

// New creates a Server and registers its routes.
func New(client llm.Client, dispatcher *agent.Dispatcher, cfg agent.Config) *Server {
	s := &Server{
		client:     client,
		dispatcher: dispatcher,
		cfg:        cfg,
		engine:     gin.New(),
	}
	s.engine.Use(gin.Logger(), gin.Recovery())
	s.engine.POST("/api/research", s.handleResearch)
	s.engine.GET("/health", s.handleHealth)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleResearch(c *gin.Context) {
	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sess := agent.NewSession(s.client, s.dispatcher, s.cfg)
	go func() {
		// The session reports its outcome through the step stream; the
		// returned Result and error are redundant here.
		_, _ = sess.Run(c.Request.Context(), question)
	}()

	c.Stream(func(w io.Writer) bool {
		step, ok := <-sess.Steps()
		if !ok {
			return false
		}
		c.SSEvent(string(step.Kind), step.Payload)
		return true
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
