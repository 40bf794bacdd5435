// internal/models/conversation.go
package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem only appears in inbound history; it is never stored.
	RoleSystem Role = "system"
)

// Valid reports whether r is a role accepted by the message table.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	Role           Role      `json:"role"`
	CreatedTime    time.Time `json:"created_time"`
	ConversationID int64     `json:"conversation_id"`
}

type Conversation struct {
	ID          int64     `json:"id"`
	Title       *string   `json:"title"`
	UserID      string    `json:"user_id"`
	CreatedTime time.Time `json:"created_time"`
	UpdatedTime time.Time `json:"updated_time"`
	PropertyID  *int64    `json:"property_id"`
	Messages    []Message `json:"messages,omitempty"`
}

// ChatMessage is one entry of the inbound message history.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
