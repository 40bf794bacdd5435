// Package store defines the client lookups the CRM query pipeline reads
// from, with Postgres, Elasticsearch and Redis-cached implementations.
package store

import (
	"context"
	"time"

	"dibs-assistant/internal/models"
)

// ClientStore is the read-only entity reference store.
//
// GetByID returns (nil, nil) when no client has the id. Search methods run an
// exact pass and fall back to a partial pass only when the exact pass is
// empty. FilterByFollowUpWindow is inclusive on both ends and ordered by
// next follow-up ascending.
type ClientStore interface {
	GetByID(ctx context.Context, id int64) (*models.Client, error)
	SearchByName(ctx context.Context, term string) ([]models.Client, error)
	SearchByEmail(ctx context.Context, term string) ([]models.Client, error)
	FilterByStatus(ctx context.Context, status string) ([]models.Client, error)
	FilterByFollowUpWindow(ctx context.Context, start, end time.Time) ([]models.Client, error)
}

// Operation names used in errors, logs and metric labels.
const (
	OpGetByID        = "get_by_id"
	OpSearchByName   = "search_by_name"
	OpSearchByEmail  = "search_by_email"
	OpFilterByStatus = "filter_by_status"
	OpFollowUpWindow = "filter_by_follow_up_window"
)
