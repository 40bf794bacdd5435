// Package storetest provides an in-memory ClientStore for tests.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"dibs-assistant/internal/models"
)

// Store mirrors the Postgres store's matching rules over a slice.
type Store struct {
	mu      sync.Mutex
	clients []models.Client
	fail    map[string]error
	calls   []Call
}

// Call records one store invocation.
type Call struct {
	Op  string
	Arg string
}

func New(clients ...models.Client) *Store {
	return &Store{clients: clients, fail: map[string]error{}}
}

// FailOn makes every call of op return err.
func (s *Store) FailOn(op string, err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
	return s
}

func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Store) record(op, arg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: op, Arg: arg})
	return s.fail[op]
}

func (s *Store) GetByID(_ context.Context, id int64) (*models.Client, error) {
	if err := s.record("get_by_id", ""); err != nil {
		return nil, err
	}
	for _, c := range s.clients {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) SearchByName(_ context.Context, term string) ([]models.Client, error) {
	if err := s.record("search_by_name", term); err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	exact := s.filter(func(c models.Client) bool {
		return strings.ToLower(c.FirstName) == term || strings.ToLower(c.LastName) == term
	})
	if len(exact) > 0 {
		return exact, nil
	}
	return s.filter(func(c models.Client) bool {
		return strings.Contains(strings.ToLower(c.FirstName), term) ||
			strings.Contains(strings.ToLower(c.LastName), term)
	}), nil
}

func (s *Store) SearchByEmail(_ context.Context, term string) ([]models.Client, error) {
	if err := s.record("search_by_email", term); err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	exact := s.filter(func(c models.Client) bool {
		return c.Email != nil && strings.ToLower(*c.Email) == term
	})
	if len(exact) > 0 {
		return exact, nil
	}
	return s.filter(func(c models.Client) bool {
		return c.Email != nil && strings.Contains(strings.ToLower(*c.Email), term)
	}), nil
}

func (s *Store) FilterByStatus(_ context.Context, status string) ([]models.Client, error) {
	if err := s.record("filter_by_status", status); err != nil {
		return nil, err
	}
	return s.filter(func(c models.Client) bool {
		return strings.EqualFold(string(c.Status), strings.TrimSpace(status))
	}), nil
}

func (s *Store) FilterByFollowUpWindow(_ context.Context, start, end time.Time) ([]models.Client, error) {
	if err := s.record("filter_by_follow_up_window", ""); err != nil {
		return nil, err
	}
	out := s.filter(func(c models.Client) bool {
		return c.NextFollowUp != nil && !c.NextFollowUp.Before(start) && !c.NextFollowUp.After(end)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextFollowUp.Before(*out[j].NextFollowUp) })
	return out, nil
}

func (s *Store) filter(keep func(models.Client) bool) []models.Client {
	var out []models.Client
	for _, c := range s.clients {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Client builds a record with the given name and optional email.
func Client(id int64, first, last, email string) models.Client {
	c := models.Client{ID: id, FirstName: first, LastName: last, Status: models.ClientStatusLead}
	if email != "" {
		c.Email = &email
	}
	return c
}
