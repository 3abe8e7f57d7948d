package models

import "time"

// Role is the author of a message. The set is closed; anything else is
// rejected before it reaches the database.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

func (r Role) String() string { return string(r) }

type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"` // empty means untitled
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        int64     `json:"id"`
	ConvID    int64     `json:"conversation_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is the projection of a Message handed to the model provider.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
