package chat

import (
	"context"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/conversation"
	"github.com/trezcool/masomo-portal/core/message"
)

// MaxBodyLength is the longest message body the school API accepts.
const MaxBodyLength = 2000

// Backend is the school API, as far as messaging is concerned.
type Backend interface {
	FetchConversations(ctx context.Context) ([]conversation.Raw, error)
	FetchConversation(ctx context.Context, id string) (conversation.Raw, error)
	// FetchMessages returns every message of the conversation, following the server pagination.
	FetchMessages(ctx context.Context, id string) ([]message.Raw, error)
	SendMessage(ctx context.Context, id string, req SendRequest) (message.Raw, error)
	// MarkRead returns the number of messages marked as read.
	MarkRead(ctx context.Context, id string) (int, error)
}

// SendRequest is the payload of a new message.
type SendRequest struct {
	Body        string `json:"contenu" validate:"required,notblank,max=2000"`
	RecipientID string `json:"destinataire,omitempty"`
}

func (r SendRequest) Validate() error {
	return core.TranslateValidation(core.Validate.Struct(r))
}
