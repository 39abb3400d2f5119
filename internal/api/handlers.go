package api

import (
	"encoding/json"
	"strings"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/validation"
	"match-engine/internal/models"
	"match-engine/internal/workers/trigger"

	"github.com/gofiber/fiber/v2"
)

type manualRecomputeRequest struct {
	Scope    models.TaskScope `json:"scope"`
	Priority int              `json:"priority"`
	Actor    string           `json:"actor"`
	Note     string           `json:"note"`
}

type triggerRequest struct {
	CandidateID   string `json:"candidateId"`
	OpportunityID string `json:"opportunityId"`
}

type processNowRequest struct {
	BatchSize int `json:"batchSize"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return success(c, fiber.StatusOK, "ok", fiber.Map{"status": "healthy"})
}

func (s *Server) topForOpportunity(c *fiber.Ctx) error {
	records, err := s.engine.TopMatchesForOpportunity(c.UserContext(), c.Params("id"), c.QueryInt("limit", 0))
	if err != nil {
		return failure(c, err)
	}
	return success(c, fiber.StatusOK, "top matches for opportunity", records)
}

func (s *Server) topForCandidate(c *fiber.Ctx) error {
	records, err := s.engine.TopMatchesForCandidate(c.UserContext(), c.Params("id"), c.QueryInt("limit", 0))
	if err != nil {
		return failure(c, err)
	}
	return success(c, fiber.StatusOK, "top matches for candidate", records)
}

func (s *Server) queueStatus(c *fiber.Ctx) error {
	status, err := s.engine.QueueStatus(c.UserContext())
	if err != nil {
		return failure(c, err)
	}
	return success(c, fiber.StatusOK, "queue status", status)
}

func (s *Server) runs(c *fiber.Ctx) error {
	entries, err := s.engine.RunHistory(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return failure(c, err)
	}
	return success(c, fiber.StatusOK, "run history", entries)
}

func (s *Server) handleTrigger(c *fiber.Ctx) error {
	event := trigger.Event(c.Params("event"))
	subjectKind, ok := trigger.Subject(event)
	if !ok {
		return failure(c, apperrors.NewInvalidRequestError("unknown trigger event "+string(event)))
	}

	var req triggerRequest
	if event != trigger.EventFullSweep {
		body := c.Body()
		if details := validateBody(validation.SchemaTrigger, body); details != nil {
			return failure(c, apperrors.NewInvalidRequestError(strings.Join(details, "; ")), details...)
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return failure(c, apperrors.NewInvalidRequestError(err.Error()))
		}
	}

	subject := req.CandidateID
	if subjectKind == models.ScopeOpportunity {
		subject = req.OpportunityID
	}
	task, n, err := s.engine.HandleTrigger(c.UserContext(), event, subject)
	if err != nil {
		return failure(c, err)
	}
	return success(c, fiber.StatusAccepted, "trigger accepted", fiber.Map{"task": task, "enqueued": n})
}

func (s *Server) manualRecompute(c *fiber.Ctx) error {
	body := c.Body()
	if details := validateBody(validation.SchemaManualRecompute, body); details != nil {
		return failure(c, apperrors.NewInvalidRequestError(strings.Join(details, "; ")), details...)
	}
	var req manualRecomputeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return failure(c, apperrors.NewInvalidTaskScopeError(err.Error()))
	}

	task, err := s.engine.TriggerManualRecompute(c.UserContext(), req.Scope, req.Priority, req.Actor, req.Note)
	if err != nil {
		return failure(c, err)
	}
	s.logger.Info("Manual recompute requested", map[string]interface{}{
		"actor":    req.Actor,
		"scope":    req.Scope.String(),
		"priority": req.Priority,
		"taskId":   task.ID,
	})
	return success(c, fiber.StatusAccepted, "recompute enqueued", task)
}

func (s *Server) processNow(c *fiber.Ctx) error {
	var req processNowRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return failure(c, apperrors.NewInvalidRequestError(err.Error()))
		}
	}
	if req.BatchSize < 0 {
		return failure(c, apperrors.NewInvalidRequestError("batchSize must not be negative"))
	}
	entry, err := s.engine.ProcessBatchNow(c.UserContext(), req.BatchSize)
	if err != nil {
		return failure(c, err)
	}
	return success(c, fiber.StatusOK, "batch processed", entry)
}

// validateBody returns the schema violations of body, or nil when it is valid.
func validateBody(schema string, body []byte) []string {
	if len(body) == 0 {
		return []string{"request body is required"}
	}
	result, err := validation.ValidateJSON(schema, body)
	if err != nil {
		return []string{"request body is not valid JSON"}
	}
	if !result.Valid {
		return result.GetErrorMessages()
	}
	return nil
}
