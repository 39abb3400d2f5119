// Package api is the HTTP surface of the engine: score reads for product
// services, trigger endpoints for collaborators and admin controls.
package api

import (
	"context"
	"errors"
	"time"

	"match-engine/internal/common/logger"
	"match-engine/internal/models"
	"match-engine/internal/workers/trigger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Engine is the part of the engine facade served over HTTP.
type Engine interface {
	TopMatchesForOpportunity(ctx context.Context, opportunityID string, limit int) ([]models.MatchScoreRecord, error)
	TopMatchesForCandidate(ctx context.Context, candidateID string, limit int) ([]models.MatchScoreRecord, error)
	QueueStatus(ctx context.Context) (models.QueueStatus, error)
	RunHistory(ctx context.Context, limit int) ([]models.RunAuditEntry, error)
	TriggerManualRecompute(ctx context.Context, scope models.TaskScope, priority int, actor, note string) (*models.RecomputationTask, error)
	HandleTrigger(ctx context.Context, event trigger.Event, subjectID string) (*models.RecomputationTask, int, error)
	ProcessBatchNow(ctx context.Context, batchSize int) (*models.RunAuditEntry, error)
}

type Server struct {
	app    *fiber.App
	engine Engine
	logger logger.Logger
}

func NewServer(engine Engine, log logger.Logger) *Server {
	s := &Server{
		engine: engine,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "match-engine",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)
	s.registerRoutes()
	return s
}

// App exposes the fiber app for tests and custom listeners.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.app.ShutdownWithContext(ctx) }

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.health)

	v1 := s.app.Group("/v1")
	v1.Get("/matches/opportunities/:id", s.topForOpportunity)
	v1.Get("/matches/candidates/:id", s.topForCandidate)
	v1.Get("/queue/status", s.queueStatus)
	v1.Get("/runs", s.runs)
	v1.Post("/triggers/:event", s.handleTrigger)

	admin := v1.Group("/admin")
	admin.Post("/recompute", s.manualRecompute)
	admin.Post("/process-now", s.processNow)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("HTTP request", map[string]interface{}{
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     c.Response().StatusCode(),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorEnvelope{Message: fe.Message, Code: "HTTP_ERROR"})
	}
	s.logger.Error("Unhandled request error", map[string]interface{}{"path": c.Path(), "error": err.Error()})
	return failure(c, err)
}
