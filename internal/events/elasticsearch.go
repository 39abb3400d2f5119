package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/tidwall/gjson"
)

// ScoreIndexMapping is applied when the score index is created.
const ScoreIndexMapping = `{
  "mappings": {
    "properties": {
      "candidateId":     {"type": "keyword"},
      "opportunityId":   {"type": "keyword"},
      "totalScore":      {"type": "float"},
      "skillScore":      {"type": "float"},
      "academicScore":   {"type": "float"},
      "experienceScore": {"type": "float"},
      "preferenceScore": {"type": "float"},
      "explanation":     {"type": "object", "enabled": false},
      "computedAt":      {"type": "date"}
    }
  }
}`

// ESScoreSink mirrors the score table into an index, one document per pair.
// Replaced scopes are cleared with a delete-by-query before the bulk write so
// pairs dropped from a candidate or opportunity do not linger.
type ESScoreSink struct {
	es    *elasticsearch.Client
	index string
}

func NewESScoreSink(es *elasticsearch.Client, index string) *ESScoreSink {
	return &ESScoreSink{es: es, index: index}
}

type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

func documentID(r models.MatchScoreRecord) string {
	return r.CandidateID + ":" + r.OpportunityID
}

func (s *ESScoreSink) IndexScores(ctx context.Context, replaced []models.TaskScope, records []models.MatchScoreRecord) error {
	if err := s.deleteScopes(ctx, replaced); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, r := range records {
		var action bulkAction
		action.Index.Index = s.index
		action.Index.ID = documentID(r)
		r.Rank = 0
		if err := enc.Encode(action); err != nil {
			return apperrors.NewIndexWriteFailedError(s.index, err)
		}
		if err := enc.Encode(r); err != nil {
			return apperrors.NewIndexWriteFailedError(s.index, err)
		}
	}

	res, err := s.es.Bulk(bytes.NewReader(body.Bytes()),
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithIndex(s.index),
	)
	if err != nil {
		return apperrors.NewIndexWriteFailedError(s.index, err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return apperrors.NewIndexWriteFailedError(s.index, err)
	}
	if res.IsError() {
		return apperrors.NewIndexWriteFailedError(s.index, fmt.Errorf("bulk: %s", res.Status()))
	}
	if gjson.GetBytes(payload, "errors").Bool() {
		reason := gjson.GetBytes(payload, "items.#.index.error.reason|0").String()
		return apperrors.NewIndexWriteFailedError(s.index, fmt.Errorf("bulk item rejected: %s", reason))
	}
	return nil
}

// replacedQuery matches every document of the given candidates or
// opportunities. It returns nil when no scope needs clearing.
func replacedQuery(replaced []models.TaskScope) map[string]interface{} {
	var candidates, opportunities []string
	for _, scope := range replaced {
		switch scope.Kind() {
		case models.ScopeCandidate:
			candidates = append(candidates, scope.CandidateID())
		case models.ScopeOpportunity:
			opportunities = append(opportunities, scope.OpportunityID())
		}
	}
	var should []interface{}
	if len(candidates) > 0 {
		should = append(should, map[string]interface{}{"terms": map[string]interface{}{"candidateId": candidates}})
	}
	if len(opportunities) > 0 {
		should = append(should, map[string]interface{}{"terms": map[string]interface{}{"opportunityId": opportunities}})
	}
	if len(should) == 0 {
		return nil
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"should": should, "minimum_should_match": 1},
		},
	}
}

func (s *ESScoreSink) deleteScopes(ctx context.Context, replaced []models.TaskScope) error {
	query := replacedQuery(replaced)
	if query == nil {
		return nil
	}
	body, err := json.Marshal(query)
	if err != nil {
		return apperrors.NewIndexWriteFailedError(s.index, err)
	}

	res, err := s.es.DeleteByQuery([]string{s.index}, bytes.NewReader(body),
		s.es.DeleteByQuery.WithContext(ctx),
		s.es.DeleteByQuery.WithConflicts("proceed"),
		s.es.DeleteByQuery.WithRefresh(true),
		s.es.DeleteByQuery.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return apperrors.NewIndexWriteFailedError(s.index, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.IsError() {
		return apperrors.NewIndexWriteFailedError(s.index, fmt.Errorf("delete_by_query: %s", res.Status()))
	}
	return nil
}
