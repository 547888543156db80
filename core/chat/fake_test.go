package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core/conversation"
	"github.com/trezcool/masomo-portal/core/message"
	"github.com/trezcool/masomo-portal/core/user"
)

var (
	base    = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
	teacher = user.Viewer{ID: "12", Role: user.RoleTeacher, Name: "Mme Kabila"}
)

func rawMsg(id int, body, sender string, ts time.Time) message.Raw {
	return message.Raw{
		ID:         message.Lenient(fmt.Sprint(id)),
		Contenu:    message.Content(body),
		DateEnvoi:  message.Lenient(ts.Format(time.RFC3339)),
		Expediteur: message.SenderRef{ID: message.Lenient(sender)},
	}
}

func rawConv(t *testing.T, data string) conversation.Raw {
	t.Helper()
	var raw conversation.Raw
	require.NoError(t, json.Unmarshal([]byte(data), &raw))
	return raw
}

// fakeBackend is an in-memory Backend. Its hooks run without holding its lock.
type fakeBackend struct {
	mu       sync.Mutex
	convs    []conversation.Raw
	conv     conversation.Raw
	msgs     []message.Raw
	fetchErr error
	convErr  error
	markErr  error
	fetches  int
	marks    int
	sent     []SendRequest
	seq      int

	beforeFetch func()
	sendHook    func(req SendRequest) (message.Raw, error)
}

var _ Backend = (*fakeBackend)(nil)

func newFakeBackend(t *testing.T, n int) *fakeBackend {
	fb := &fakeBackend{
		conv: rawConv(t, `{"id": 1, "other_user": {"id": 7, "nom": "Jean Mbuyi", "role": "parent"}, "unread_count": 3}`),
		seq:  1000,
	}
	for i := 0; i < n; i++ {
		sender := "7"
		if i%2 == 1 {
			sender = teacher.ID
		}
		fb.msgs = append(fb.msgs, rawMsg(i+1, fmt.Sprintf("message %d", i+1), sender, base.Add(time.Duration(i)*time.Minute)))
	}
	return fb
}

func (fb *fakeBackend) add(raw message.Raw) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.msgs = append(fb.msgs, raw)
}

func (fb *fakeBackend) setFetchErr(err error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.fetchErr = err
}

func (fb *fakeBackend) fetchCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.fetches
}

func (fb *fakeBackend) FetchConversations(_ context.Context) ([]conversation.Raw, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.convs, fb.convErr
}

func (fb *fakeBackend) FetchConversation(_ context.Context, _ string) (conversation.Raw, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.conv, fb.convErr
}

func (fb *fakeBackend) FetchMessages(ctx context.Context, _ string) ([]message.Raw, error) {
	if fb.beforeFetch != nil {
		fb.beforeFetch()
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.fetches++
	if fb.fetchErr != nil {
		return nil, fb.fetchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]message.Raw, len(fb.msgs))
	copy(out, fb.msgs)
	return out, nil
}

func (fb *fakeBackend) SendMessage(_ context.Context, _ string, req SendRequest) (message.Raw, error) {
	fb.mu.Lock()
	fb.sent = append(fb.sent, req)
	fb.mu.Unlock()
	if fb.sendHook != nil {
		return fb.sendHook(req)
	}
	return fb.store(req.Body), nil
}

// store saves a message sent by the teacher, as the server would.
func (fb *fakeBackend) store(body string) message.Raw {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.seq++
	raw := rawMsg(fb.seq, body, teacher.ID, base.Add(24*time.Hour))
	fb.msgs = append(fb.msgs, raw)
	return raw
}

func (fb *fakeBackend) MarkRead(_ context.Context, _ string) (int, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.markErr != nil {
		return 0, fb.markErr
	}
	fb.marks++
	return 3, nil
}
