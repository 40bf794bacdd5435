package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"dibs-assistant/internal/common/database"
	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clientCols = []string{
	"id", "first_name", "last_name", "email", "phone", "status", "source",
	"last_contact_date", "next_follow_up", "budget_min", "budget_max",
	"property_type", "assigned_agent", "notes", "created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(database.NewPostgresFromDB(db), time.Second), mock
}

func addClientRow(rows *sqlmock.Rows, id int64, first, last string, email interface{}, followUp interface{}) *sqlmock.Rows {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, first, last, email, "555-0100", "Active", nil,
		nil, followUp, 300000.0, 450000.0, "Condo", "Sarah Johnson", nil, created, created)
}

func TestPostgresStore_GetByID(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM client WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(addClientRow(sqlmock.NewRows(clientCols), 42, "Anthony", "Young", "anthony.young@hotmail.com", nil))

	c, err := s.GetByID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Anthony Young", c.FullName())
	assert.Equal(t, models.ClientStatusActive, c.Status)
	require.NotNil(t, c.Email)
	assert.Equal(t, "anthony.young@hotmail.com", *c.Email)
	assert.Nil(t, c.Source)
	assert.Nil(t, c.NextFollowUp)
	require.NotNil(t, c.BudgetMax)
	assert.Equal(t, 450000.0, *c.BudgetMax)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByID_NotFound(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM client WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(clientCols))

	c, err := s.GetByID(context.Background(), 7)
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestPostgresStore_SearchByName_ExactThenPartial(t *testing.T) {
	nameQuery := regexp.QuoteMeta("WHERE first_name ILIKE $1 OR last_name ILIKE $1")

	t.Run("exact hit skips partial pass", func(t *testing.T) {
		s, mock := setupMockDB(t)
		mock.ExpectQuery(nameQuery).WithArgs("jane").
			WillReturnRows(addClientRow(sqlmock.NewRows(clientCols), 1, "Jane", "Doe", nil, nil))

		got, err := s.SearchByName(context.Background(), "  Jane ")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty exact pass falls back to partial", func(t *testing.T) {
		s, mock := setupMockDB(t)
		mock.ExpectQuery(nameQuery).WithArgs("jen").WillReturnRows(sqlmock.NewRows(clientCols))
		mock.ExpectQuery(nameQuery).WithArgs("%jen%").
			WillReturnRows(addClientRow(sqlmock.NewRows(clientCols), 4, "Jennifer", "Smith", nil, nil))

		got, err := s.SearchByName(context.Background(), "Jen")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Jennifer", got[0].FirstName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("like metacharacters are escaped", func(t *testing.T) {
		s, mock := setupMockDB(t)
		mock.ExpectQuery(nameQuery).WithArgs(`100\%`).WillReturnRows(sqlmock.NewRows(clientCols))
		mock.ExpectQuery(nameQuery).WithArgs(`%100\%%`).WillReturnRows(sqlmock.NewRows(clientCols))

		got, err := s.SearchByName(context.Background(), "100%")
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blank term does not query", func(t *testing.T) {
		s, mock := setupMockDB(t)
		got, err := s.SearchByName(context.Background(), "   ")
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_SearchByEmail(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE lower(email) = $1")).
		WithArgs("emily@example.com").
		WillReturnRows(sqlmock.NewRows(clientCols))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE email ILIKE $1")).
		WithArgs("%emily@example.com%").
		WillReturnRows(addClientRow(sqlmock.NewRows(clientCols), 2, "Emily", "Parker", "emily.parker+x@example.com", nil))

	got, err := s.SearchByEmail(context.Background(), "Emily@Example.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FilterByFollowUpWindow(t *testing.T) {
	s, mock := setupMockDB(t)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 5)
	due := start.Add(48 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE next_follow_up >= $1 AND next_follow_up <= $2")).
		WithArgs(start, end).
		WillReturnRows(addClientRow(sqlmock.NewRows(clientCols), 3, "Robert", "Johnson", nil, due))

	got, err := s.FilterByFollowUpWindow(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].NextFollowUp)
	assert.True(t, got[0].NextFollowUp.Equal(due))
}

func TestPostgresStore_QueryErrorIsStandard(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE lower(status) = lower($1)")).
		WithArgs("active").
		WillReturnError(errors.New("connection reset by peer"))

	_, err := s.FilterByStatus(context.Background(), "active")
	require.Error(t, err)
	std := apperrors.AsStandard(err)
	assert.Equal(t, apperrors.ErrCodeStoreQueryFailed, std.Code)
	assert.Contains(t, std.Details, OpFilterByStatus)
}
