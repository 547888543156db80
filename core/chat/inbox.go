package chat

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/conversation"
	"github.com/trezcool/masomo-portal/core/user"
)

// Inbox lists the viewer's conversations, most recent activity first.
func Inbox(ctx context.Context, backend Backend, viewer user.Viewer, resolver *conversation.Resolver) ([]conversation.Summary, error) {
	raws, err := backend.FetchConversations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "chat.Inbox")
	}
	summaries := make([]conversation.Summary, 0, len(raws))
	for _, raw := range raws {
		summaries = append(summaries, resolver.Summarize(raw, viewer))
	}
	conversation.SortByActivity(summaries)
	return summaries, nil
}
