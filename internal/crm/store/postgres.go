// internal/crm/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/models"
)

const clientColumns = `id, first_name, last_name, email, phone, status, source,
	last_contact_date, next_follow_up, budget_min, budget_max,
	property_type, assigned_agent, notes, created_at, updated_at`

// Querier is the subset of *database.PostgresClient the store needs.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore reads clients from the client table.
type PostgresStore struct {
	db      Querier
	timeout time.Duration
}

// NewPostgresStore bounds each query by timeout when it is positive.
func NewPostgresStore(db Querier, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM client WHERE id = $1`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapQueryError(OpGetByID, err)
	}
	return c, nil
}

func (s *PostgresStore) SearchByName(ctx context.Context, term string) ([]models.Client, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const q = `SELECT ` + clientColumns + ` FROM client
		WHERE first_name ILIKE $1 OR last_name ILIKE $1 ORDER BY id`
	exact, err := s.queryClients(ctx, OpSearchByName, q, escapeLike(term))
	if err != nil || len(exact) > 0 {
		return exact, err
	}
	return s.queryClients(ctx, OpSearchByName, q, "%"+escapeLike(term)+"%")
}

func (s *PostgresStore) SearchByEmail(ctx context.Context, term string) ([]models.Client, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exact, err := s.queryClients(ctx, OpSearchByEmail,
		`SELECT `+clientColumns+` FROM client WHERE lower(email) = $1 ORDER BY id`, term)
	if err != nil || len(exact) > 0 {
		return exact, err
	}
	return s.queryClients(ctx, OpSearchByEmail,
		`SELECT `+clientColumns+` FROM client WHERE email ILIKE $1 ORDER BY id`, "%"+escapeLike(term)+"%")
}

func (s *PostgresStore) FilterByStatus(ctx context.Context, status string) ([]models.Client, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.queryClients(ctx, OpFilterByStatus,
		`SELECT `+clientColumns+` FROM client WHERE lower(status) = lower($1) ORDER BY id`,
		strings.TrimSpace(status))
}

func (s *PostgresStore) FilterByFollowUpWindow(ctx context.Context, start, end time.Time) ([]models.Client, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.queryClients(ctx, OpFollowUpWindow,
		`SELECT `+clientColumns+` FROM client
		WHERE next_follow_up >= $1 AND next_follow_up <= $2
		ORDER BY next_follow_up ASC`, start, end)
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) queryClients(ctx context.Context, op, query string, args ...interface{}) ([]models.Client, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryError(op, err)
	}
	defer rows.Close()

	var out []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, wrapQueryError(op, err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError(op, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(r scanner) (*models.Client, error) {
	var (
		c                                     models.Client
		status                                string
		email, phone, source, propType, agent sql.NullString
		notes                                 sql.NullString
		lastContact, nextFollowUp             sql.NullTime
		budgetMin, budgetMax                  sql.NullFloat64
	)
	err := r.Scan(&c.ID, &c.FirstName, &c.LastName, &email, &phone, &status, &source,
		&lastContact, &nextFollowUp, &budgetMin, &budgetMax,
		&propType, &agent, &notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = models.ClientStatus(status)
	c.Email = nullString(email)
	c.Phone = nullString(phone)
	c.Source = nullString(source)
	c.PropertyType = nullString(propType)
	c.AssignedAgent = nullString(agent)
	c.Notes = nullString(notes)
	c.LastContactDate = nullTime(lastContact)
	c.NextFollowUp = nullTime(nextFollowUp)
	c.BudgetMin = nullFloat(budgetMin)
	c.BudgetMax = nullFloat(budgetMax)
	return &c, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// escapeLike makes user text literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func wrapQueryError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewStoreTimeoutError(op, err)
	}
	return apperrors.NewStoreQueryFailedError(op, fmt.Errorf("postgres: %w", err))
}
