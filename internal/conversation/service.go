// Package conversation persists chat conversations and their messages.
package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dibs-assistant/internal/common/database"
	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/models"
)

const DefaultTitle = "New Conversation"

type Service struct {
	db     *database.PostgresClient
	now    func() time.Time
	logger logger.Logger
}

func NewService(db *database.PostgresClient, log logger.Logger) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }, logger: log}
}

// CreateConversation makes sure userID has a user row, then opens a
// conversation for it and returns the new id.
func (s *Service) CreateConversation(ctx context.Context, userID, title string, propertyID *int64) (int64, error) {
	if title == "" {
		title = DefaultTitle
	}

	if _, err := s.db.Exec(ctx,
		`INSERT INTO "user" (user_id, email) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, fmt.Sprintf("%s@example.com", userID),
	); err != nil {
		return 0, apperrors.NewPersistenceFailedError("ensure_user", err)
	}

	now := s.now()
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO conversation (user_id, title, property_id, created_time, updated_time)
		VALUES ($1, $2, $3, $4, $4) RETURNING id`,
		userID, title, propertyID, now,
	).Scan(&id)
	if err != nil {
		return 0, apperrors.NewPersistenceFailedError("create_conversation", err)
	}

	s.logger.Debug("conversation created", map[string]interface{}{"conversationId": id, "userId": userID})
	return id, nil
}

// AddMessage appends a message and bumps the conversation's updated_time.
func (s *Service) AddMessage(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("unsupported role %q", role))
	}
	msg := &models.Message{
		Content:        content,
		Role:           role,
		ConversationID: conversationID,
		CreatedTime:    s.now(),
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO message (content, role, conversation_id, created_time)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			msg.Content, string(msg.Role), msg.ConversationID, msg.CreatedTime,
		).Scan(&msg.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE conversation SET updated_time = $1 WHERE id = $2`, msg.CreatedTime, conversationID)
		return err
	})
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError("add_message", err).WithMetadata("role", string(role))
	}
	return msg, nil
}

// ListConversations returns userID's conversations, most recently updated first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, user_id, created_time, updated_time, property_id
		FROM conversation WHERE user_id = $1 ORDER BY updated_time DESC`, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError("list_conversations", err)
	}
	defer rows.Close()

	out := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceFailedError("list_conversations", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceFailedError("list_conversations", err)
	}
	return out, nil
}

// GetConversation loads a conversation with its messages in creation order.
func (s *Service) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	c, err := scanConversation(s.db.QueryRow(ctx,
		`SELECT id, title, user_id, created_time, updated_time, property_id
		FROM conversation WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewConversationNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError("get_conversation", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, content, role, created_time, conversation_id
		FROM message WHERE conversation_id = $1 ORDER BY created_time ASC, id ASC`, id)
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError("get_messages", err)
	}
	defer rows.Close()

	c.Messages = []models.Message{}
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&m.ID, &m.Content, &role, &m.CreatedTime, &m.ConversationID); err != nil {
			return nil, apperrors.NewPersistenceFailedError("get_messages", err)
		}
		m.Role = models.Role(role)
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceFailedError("get_messages", err)
	}
	return c, nil
}

// DeleteConversation removes the conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, id int64) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM message WHERE conversation_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM conversation WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return apperrors.NewPersistenceFailedError("delete_conversation", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(r scanner) (*models.Conversation, error) {
	var (
		c          models.Conversation
		title      sql.NullString
		propertyID sql.NullInt64
	)
	if err := r.Scan(&c.ID, &title, &c.UserID, &c.CreatedTime, &c.UpdatedTime, &propertyID); err != nil {
		return nil, err
	}
	if title.Valid {
		c.Title = &title.String
	}
	if propertyID.Valid {
		c.PropertyID = &propertyID.Int64
	}
	return &c, nil
}
