package message

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-portal/core/user"
)

// TemporaryIDPrefix marks the ids of optimistic messages. Server ids never carry it.
const TemporaryIDPrefix = "tmp-"

// Sender is the display information of a message author.
type Sender struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Role user.Role `json:"role"`
}

// Message is the canonical display record of a conversation message.
type Message struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Mine      bool      `json:"mine"`
	Read      bool      `json:"read"`
	Pending   bool      `json:"pending"` // optimistic, not yet confirmed by the server
	Sender    Sender    `json:"sender"`
}

// NewTemporaryID generates a client-side id for an optimistic message.
func NewTemporaryID() string {
	return TemporaryIDPrefix + uuid.NewString()
}

// IsTemporaryID reports whether id was generated by NewTemporaryID.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TemporaryIDPrefix)
}
