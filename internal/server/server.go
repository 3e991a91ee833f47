// Package server exposes a synthesized assembly over HTTP for previewing.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BDNK1/schedstack/internal/schedule"
	"github.com/BDNK1/schedstack/internal/synth"
	"github.com/BDNK1/schedstack/internal/template"
)

const (
	defaultPreviewCount = 5
	maxPreviewCount     = 100
)

// Source produces the assembly to serve. It is called on every request so
// edits to the project show up without a restart.
type Source func() (*synth.Assembly, error)

// Server serves one project's assembly.
type Server struct {
	source Source
	logger *slog.Logger
	now    func() time.Time
	engine *gin.Engine
}

// New builds the gin engine and registers the routes.
func New(source Source, logger *slog.Logger) *Server {
	s := &Server{
		source: source,
		logger: logger,
		now:    time.Now,
	}

	g := gin.New()
	g.Use(gin.Recovery(), s.logRequests())

	g.GET("/healthz", s.handleHealth)
	g.GET("/template", s.handleTemplate)
	g.GET("/manifest", s.handleManifest)
	g.GET("/schedule", s.handleSchedule)

	s.engine = g
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until the server fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("serving assembly", "addr", addr)
	return s.engine.Run(addr)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()
		c.Next()
		s.logger.Debug("request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTemplate(c *gin.Context) {
	a, ok := s.assembly(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", a.Config.Output.Format)
	data := a.TemplateBytes
	if format != a.Config.Output.Format {
		if format != template.FormatJSON && format != template.FormatYAML {
			c.JSON(http.StatusBadRequest, gin.H{"message": "format must be json or yaml"})
			return
		}
		var err error
		if data, err = a.Template.Render(format); err != nil {
			s.fail(c, err)
			return
		}
	}

	c.Data(http.StatusOK, contentType(format), data)
}

func (s *Server) handleManifest(c *gin.Context) {
	a, ok := s.assembly(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, contentType(template.FormatJSON), a.ManifestBytes)
}

func (s *Server) handleSchedule(c *gin.Context) {
	count := defaultPreviewCount
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPreviewCount {
			c.JSON(http.StatusBadRequest, gin.H{"message": "count must be between 1 and " + strconv.Itoa(maxPreviewCount)})
			return
		}
		count = n
	}

	a, ok := s.assembly(c)
	if !ok {
		return
	}

	rule := a.Definition.Rule
	times, err := schedule.Next(rule.Cron, s.now(), count)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, schedule.ErrUnsupportedExpression) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"message": err.Error()})
		return
	}

	next := make([]string, len(times))
	for i, t := range times {
		next[i] = t.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"rule":       rule.Name,
		"expression": rule.ScheduleExpression(),
		"enabled":    rule.Enabled,
		"next":       next,
	})
}

// assembly synthesizes the project; failed checks are reported like any
// other synthesis error.
func (s *Server) assembly(c *gin.Context) (*synth.Assembly, bool) {
	a, err := s.source()
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return a, true
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("synthesis failed",
		"path", c.Request.URL.Path,
		"error", err.Error())
	c.JSON(http.StatusInternalServerError, gin.H{
		"message": "Error in synthesis: " + err.Error(),
	})
}

func contentType(format string) string {
	if format == template.FormatYAML {
		return "application/yaml; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}
