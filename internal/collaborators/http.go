package collaborators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"match-engine/internal/common/config"
	apperrors "match-engine/internal/common/errors"
	apphttp "match-engine/internal/common/http"
	"match-engine/internal/models"

	"github.com/tidwall/gjson"
)

const (
	candidatePath   = "/v1/candidates/{id}"
	opportunityPath = "/v1/opportunities/{id}"

	profileServiceName     = "profile-service"
	opportunityServiceName = "opportunity-service"
)

// HTTPProfileService talks to the profile service REST API.
type HTTPProfileService struct {
	client     *apphttp.Client
	activePath string
}

func NewHTTPProfileService(cfg config.CollaboratorsConfig) *HTTPProfileService {
	return &HTTPProfileService{
		client:     apphttp.NewClient(cfg.ProfileServiceURL, time.Duration(cfg.Timeout)*time.Millisecond, cfg.APIKey),
		activePath: cfg.ActiveCandidatesPath,
	}
}

func (s *HTTPProfileService) GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error) {
	var c models.CandidateProfile
	found, err := fetchOne(ctx, s.client, profileServiceName, candidatePath, id, &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewCandidateNotFoundError(id)
	}
	return &c, nil
}

func (s *HTTPProfileService) ListActiveCandidates(ctx context.Context) ([]models.CandidateProfile, error) {
	var out []models.CandidateProfile
	if err := fetchList(ctx, s.client, profileServiceName, s.activePath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HTTPOpportunityService talks to the opportunity service REST API.
type HTTPOpportunityService struct {
	client     *apphttp.Client
	activePath string
}

func NewHTTPOpportunityService(cfg config.CollaboratorsConfig) *HTTPOpportunityService {
	return &HTTPOpportunityService{
		client:     apphttp.NewClient(cfg.OpportunityServiceURL, time.Duration(cfg.Timeout)*time.Millisecond, cfg.APIKey),
		activePath: cfg.ActiveOpportunitiesPath,
	}
}

func (s *HTTPOpportunityService) GetOpportunity(ctx context.Context, id string) (*models.OpportunityProfile, error) {
	var o models.OpportunityProfile
	found, err := fetchOne(ctx, s.client, opportunityServiceName, opportunityPath, id, &o)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewOpportunityNotFoundError(id)
	}
	return &o, nil
}

func (s *HTTPOpportunityService) ListActiveOpportunities(ctx context.Context) ([]models.OpportunityProfile, error) {
	var out []models.OpportunityProfile
	if err := fetchList(ctx, s.client, opportunityServiceName, s.activePath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fetchOne(ctx context.Context, c *apphttp.Client, service, path, id string, dest interface{}) (bool, error) {
	resp, err := c.Get(ctx, path, map[string]string{"id": id})
	if err != nil {
		return false, apperrors.NewProfileFetchFailedError(service, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err := decode(service, resp, dest); err != nil {
		return false, err
	}
	return true, nil
}

func fetchList(ctx context.Context, c *apphttp.Client, service, path string, dest interface{}) error {
	resp, err := c.Get(ctx, path, nil)
	if err != nil {
		return apperrors.NewProfileFetchFailedError(service, err)
	}
	return decode(service, resp, dest)
}

// decode accepts either a bare JSON document or one wrapped in the
// {"success":…, "data":…} envelope the services use.
func decode(service string, resp *apphttp.Response, dest interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(resp.Body, "message").String()
		return apperrors.NewProfileFetchFailedError(service, fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	if !gjson.ValidBytes(resp.Body) {
		return apperrors.NewMalformedProfileError(service + " returned invalid JSON")
	}
	payload := resp.Body
	if data := gjson.GetBytes(resp.Body, "data"); data.Exists() {
		payload = []byte(data.Raw)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return apperrors.NewMalformedProfileError(fmt.Sprintf("%s payload: %v", service, err))
	}
	return nil
}
