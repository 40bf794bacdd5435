// internal/crm/store/search.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const defaultSearchSize = 50

// SearchIndex answers name and email searches from an Elasticsearch index of
// client documents and delegates every other lookup to the primary store.
type SearchIndex struct {
	client  *elasticsearch.Client
	index   string
	primary ClientStore
	size    int
}

func NewSearchIndex(client *elasticsearch.Client, index string, primary ClientStore) *SearchIndex {
	return &SearchIndex{client: client, index: index, primary: primary, size: defaultSearchSize}
}

func (s *SearchIndex) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	return s.primary.GetByID(ctx, id)
}

func (s *SearchIndex) FilterByStatus(ctx context.Context, status string) ([]models.Client, error) {
	return s.primary.FilterByStatus(ctx, status)
}

func (s *SearchIndex) FilterByFollowUpWindow(ctx context.Context, start, end time.Time) ([]models.Client, error) {
	return s.primary.FilterByFollowUpWindow(ctx, start, end)
}

func (s *SearchIndex) SearchByName(ctx context.Context, term string) ([]models.Client, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	exact, err := s.search(ctx, OpSearchByName, anyOf(
		termClause("first_name.keyword", term),
		termClause("last_name.keyword", term),
	))
	if err != nil || len(exact) > 0 {
		return exact, err
	}
	pattern := "*" + escapeWildcard(term) + "*"
	return s.search(ctx, OpSearchByName, anyOf(
		wildcardClause("first_name.keyword", pattern),
		wildcardClause("last_name.keyword", pattern),
	))
}

func (s *SearchIndex) SearchByEmail(ctx context.Context, term string) ([]models.Client, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	exact, err := s.search(ctx, OpSearchByEmail, anyOf(termClause("email.keyword", term)))
	if err != nil || len(exact) > 0 {
		return exact, err
	}
	return s.search(ctx, OpSearchByEmail, anyOf(
		wildcardClause("email.keyword", "*"+escapeWildcard(term)+"*"),
	))
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Client `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *SearchIndex) search(ctx context.Context, op string, query map[string]interface{}) ([]models.Client, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query": query,
		"sort":  []interface{}{map[string]interface{}{"id": "asc"}},
	})
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(op, err)
	}

	size := s.size
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewStoreTimeoutError(op, err)
		}
		return nil, apperrors.NewSearchQueryFailedError(op, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(op, fmt.Errorf("search index %s: %s", s.index, res.String()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(op, fmt.Errorf("decode response: %w", err))
	}
	out := make([]models.Client, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func anyOf(clauses ...interface{}) map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"should":               clauses,
			"minimum_should_match": 1,
		},
	}
}

func termClause(field, value string) map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{
			field: map[string]interface{}{"value": value, "case_insensitive": true},
		},
	}
}

func wildcardClause(field, pattern string) map[string]interface{} {
	return map[string]interface{}{
		"wildcard": map[string]interface{}{
			field: map[string]interface{}{"value": pattern, "case_insensitive": true},
		},
	}
}

func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}
