// Package resolver runs a QueryIntent against the client store through a
// fixed, serial cascade of lookup strategies.
package resolver

import (
	"context"
	"strings"
	"time"

	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/metrics"
	"dibs-assistant/internal/crm/intent"
	"dibs-assistant/internal/crm/store"
)

// strategy attempts one lookup. A nil result means "nothing here, continue".
type strategy struct {
	name    string
	applies func(q *intent.QueryIntent) bool
	run     func(r *Resolver, ctx context.Context, q *intent.QueryIntent) *Result
}

// Strategy order: email, id, name (property owner resolves as name),
// status, follow-up window. The first non-empty result wins.
var strategies = []strategy{
	{
		name:    "email",
		applies: func(q *intent.QueryIntent) bool { return q.Email != "" },
		run:     (*Resolver).byEmail,
	},
	{
		name:    "id",
		applies: func(q *intent.QueryIntent) bool { return q.Kind == intent.KindByID },
		run:     (*Resolver).byID,
	},
	{
		name: "name",
		applies: func(q *intent.QueryIntent) bool {
			return q.Kind == intent.KindByName || q.Kind == intent.KindByPropertyOwnerName
		},
		run: (*Resolver).byName,
	},
	{
		name:    "status",
		applies: func(q *intent.QueryIntent) bool { return q.Kind == intent.KindByStatus },
		run:     (*Resolver).byStatus,
	},
	{
		name:    "follow_up_window",
		applies: func(q *intent.QueryIntent) bool { return q.Kind == intent.KindByFollowUpWindow },
		run:     (*Resolver).byFollowUpWindow,
	},
}

type Resolver struct {
	store  store.ClientStore
	now    func() time.Time
	logger logger.Logger
}

type Option func(*Resolver)

// WithClock replaces time.Now for the follow-up window.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func New(s store.ClientStore, log logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{store: s, now: time.Now, logger: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails: store errors are logged and the failing strategy is
// treated as empty. A nil intent resolves to NoMatch.
func (r *Resolver) Resolve(ctx context.Context, q *intent.QueryIntent) *Result {
	if q == nil {
		return noMatch(false)
	}

	for _, s := range strategies {
		if !s.applies(q) {
			continue
		}
		if res := s.run(r, ctx, q); res != nil {
			res.PhoneHint = q.PhoneHint
			r.observe(res)
			return res
		}
		r.logger.Debug("strategy found nothing", map[string]interface{}{
			"strategy": s.name,
			"value":    q.Value(),
		})
	}

	res := noMatch(q.PhoneHint)
	r.observe(res)
	return res
}

func (r *Resolver) observe(res *Result) {
	metrics.CRMResolutions.WithLabelValues(string(res.Kind), res.MatchedBy).Inc()
	r.logger.Debug("intent resolved", map[string]interface{}{
		"kind":         string(res.Kind),
		"matchedBy":    res.MatchedBy,
		"matchedValue": res.MatchedValue,
		"records":      len(res.Records()),
	})
}

func (r *Resolver) byEmail(ctx context.Context, q *intent.QueryIntent) *Result {
	clients, err := r.store.SearchByEmail(ctx, q.Email)
	if r.failed(store.OpSearchByEmail, err) || len(clients) == 0 {
		return nil
	}
	return &Result{Kind: KindClientList, Clients: clients, MatchedBy: MatchedByEmail, MatchedValue: q.Email}
}

func (r *Resolver) byID(ctx context.Context, q *intent.QueryIntent) *Result {
	if q.ID <= 0 {
		return nil
	}
	client, err := r.store.GetByID(ctx, q.ID)
	if r.failed(store.OpGetByID, err) || client == nil {
		return nil
	}
	return &Result{Kind: KindSingleClient, Client: client, MatchedBy: MatchedByID, MatchedValue: q.Value()}
}

// byName searches the full name, then the first and last tokens of a
// multi-word name in that order.
func (r *Resolver) byName(ctx context.Context, q *intent.QueryIntent) *Result {
	name := strings.TrimSpace(q.Name)
	if name == "" {
		return nil
	}
	if res := r.searchName(ctx, name, MatchedByName); res != nil {
		return res
	}

	parts := strings.Fields(name)
	if len(parts) < 2 {
		return nil
	}
	if res := r.searchName(ctx, parts[0], MatchedByFirstName); res != nil {
		return res
	}
	return r.searchName(ctx, parts[len(parts)-1], MatchedByLastName)
}

func (r *Resolver) searchName(ctx context.Context, term, matchedBy string) *Result {
	clients, err := r.store.SearchByName(ctx, term)
	if r.failed(store.OpSearchByName, err) || len(clients) == 0 {
		return nil
	}
	return &Result{Kind: KindClientList, Clients: clients, MatchedBy: matchedBy, MatchedValue: term}
}

func (r *Resolver) byStatus(ctx context.Context, q *intent.QueryIntent) *Result {
	clients, err := r.store.FilterByStatus(ctx, q.Status)
	if r.failed(store.OpFilterByStatus, err) || len(clients) == 0 {
		return nil
	}
	return &Result{Kind: KindClientList, Clients: clients, MatchedBy: MatchedByStatus, MatchedValue: q.Status}
}

func (r *Resolver) byFollowUpWindow(ctx context.Context, q *intent.QueryIntent) *Result {
	if q.Days < 0 {
		return nil
	}
	start := r.now()
	end := start.AddDate(0, 0, min(q.Days, intent.MaxFollowUpDays))
	clients, err := r.store.FilterByFollowUpWindow(ctx, start, end)
	if r.failed(store.OpFollowUpWindow, err) || len(clients) == 0 {
		return nil
	}
	return &Result{Kind: KindFollowUpList, Clients: clients, MatchedBy: MatchedByDays, MatchedValue: q.Value()}
}

func (r *Resolver) failed(op string, err error) bool {
	if err == nil {
		return false
	}
	metrics.CRMStoreFailures.WithLabelValues(op).Inc()
	r.logger.Warn("client store lookup failed, continuing", map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
	return true
}
