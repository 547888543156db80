package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/conversation"
	"github.com/trezcool/masomo-portal/core/message"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/tests"
)

func newSession(t *testing.T, fb *fakeBackend) *Session {
	t.Helper()
	log, _ := testutil.NewLogger(t)
	s, err := NewSession(fb, "1", teacher, log,
		WithLocation(time.UTC),
		WithClock(func() time.Time { return base.Add(48 * time.Hour) }),
	)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func countBody(msgs []message.Message, body string) int {
	var n int
	for _, m := range msgs {
		if m.Body == body {
			n++
		}
	}
	return n
}

func visible(v View) int {
	var n int
	for _, g := range v.Groups {
		n += len(g.Messages)
	}
	return n
}

func TestNewSession_arguments(t *testing.T) {
	log, _ := testutil.NewLogger(t)
	fb := newFakeBackend(t, 0)

	tests := []struct {
		name    string
		backend Backend
		id      string
		viewer  user.Viewer
		log     core.Logger
	}{
		{name: "nil backend", id: "1", viewer: teacher, log: log},
		{name: "blank id", backend: fb, id: "  ", viewer: teacher, log: log},
		{name: "nil logger", backend: fb, id: "1", viewer: teacher},
		{name: "viewer without id", backend: fb, id: "1", viewer: user.Viewer{Role: user.RoleParent}, log: log},
		{name: "admin viewer", backend: fb, id: "1", viewer: user.Viewer{ID: "1", Role: user.RoleAdmin}, log: log},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(tt.backend, tt.id, tt.viewer, tt.log)
			assert.Error(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestSession_Open(t *testing.T) {
	fb := newFakeBackend(t, 25)
	s := newSession(t, fb)

	view := s.View()
	assert.Equal(t, "Parent", view.Participant.Name)
	assert.True(t, view.Participant.IsPlaceholder())
	assert.Zero(t, view.Total)

	require.NoError(t, s.Open(context.Background()))

	view = s.View()
	assert.Equal(t, conversation.Participant{ID: "7", Name: "Jean Mbuyi", Role: user.RoleParent, Source: conversation.SourceOtherUser}, view.Participant)
	assert.Equal(t, 25, view.Total)
	assert.Equal(t, 10, visible(view))
	assert.True(t, view.HasMore)
	assert.False(t, view.Loading)
	require.Len(t, view.Groups, 1)
	assert.Equal(t, "message 16", view.Groups[0].Messages[0].Body)

	assert.Equal(t, 1, fb.marks)
	assert.Zero(t, s.Summary().UnreadCount)

	msgs := s.Messages()
	assert.False(t, msgs[0].Mine)
	assert.Equal(t, message.Sender{ID: "7", Name: "Jean Mbuyi", Role: user.RoleParent}, msgs[0].Sender)
	assert.True(t, msgs[1].Mine)
	assert.Equal(t, message.YouLabel, msgs[1].Sender.Name)
}

func TestSession_pagination(t *testing.T) {
	fb := newFakeBackend(t, 25)
	s := newSession(t, fb)
	require.NoError(t, s.Open(context.Background()))

	assert.True(t, s.LoadPrevious())
	assert.Equal(t, 20, visible(s.View()))
	assert.True(t, s.View().HasMore)

	assert.True(t, s.LoadPrevious())
	assert.Equal(t, 25, visible(s.View()))
	assert.False(t, s.View().HasMore)
	assert.False(t, s.LoadPrevious())

	// background refresh keeps the window
	fb.add(rawMsg(26, "late", "7", base.Add(time.Hour)))
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 26, visible(s.View()))

	// a fresh load goes back to the first page
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, 10, visible(s.View()))
	assert.Equal(t, 26, s.View().Total)
}

func TestSession_markReadFailureDoesNotBlock(t *testing.T) {
	fb := newFakeBackend(t, 3)
	fb.markErr = &core.RequestError{StatusCode: 500}
	s := newSession(t, fb)

	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, 3, s.View().Total)
	assert.Equal(t, 3, s.Summary().UnreadCount)
}

func TestSession_failuresKeepThread(t *testing.T) {
	fb := newFakeBackend(t, 5)
	s := newSession(t, fb)
	require.NoError(t, s.Open(context.Background()))

	tests := []struct {
		name     string
		err      error
		wantAuth bool
	}{
		{name: "server error", err: &core.RequestError{StatusCode: 502}},
		{name: "network error", err: &core.RequestError{Err: errors.New("connection refused")}},
		{name: "authentication", err: core.ErrUnauthenticated, wantAuth: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb.setFetchErr(tt.err)
			defer fb.setFetchErr(nil)

			err := s.Open(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantAuth, core.IsUnauthenticated(err))
			assert.Error(t, s.Refresh(context.Background()))
			assert.Equal(t, 5, s.View().Total)
		})
	}
}

func TestSession_emptyFetchKeepsThread(t *testing.T) {
	fb := newFakeBackend(t, 5)
	s := newSession(t, fb)
	require.NoError(t, s.Open(context.Background()))

	fb.mu.Lock()
	fb.msgs = nil
	fb.mu.Unlock()

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 5, s.View().Total)
}

func TestSession_Send(t *testing.T) {
	fb := newFakeBackend(t, 3)
	s := newSession(t, fb)
	require.NoError(t, s.Open(context.Background()))

	release := make(chan struct{})
	fb.sendHook = func(req SendRequest) (message.Raw, error) {
		<-release
		return fb.store(req.Body), nil
	}

	var (
		wg   sync.WaitGroup
		sent message.Message
		err  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sent, err = s.Send(context.Background(), "Hello")
	}()

	require.Eventually(t, func() bool { return countBody(s.Messages(), "Hello") == 1 }, time.Second, time.Millisecond)
	msgs := s.Messages()
	last := msgs[len(msgs)-1]
	assert.True(t, last.Pending)
	assert.True(t, message.IsTemporaryID(last.ID))

	close(release)
	wg.Wait()
	require.NoError(t, err)

	msgs = s.Messages()
	assert.Equal(t, 1, countBody(msgs, "Hello"))
	assert.Equal(t, "1001", sent.ID)
	assert.False(t, sent.Pending)
	assert.True(t, sent.Mine)
	for _, m := range msgs {
		assert.False(t, message.IsTemporaryID(m.ID))
	}
	require.Len(t, fb.sent, 1)
	assert.Equal(t, SendRequest{Body: "Hello", RecipientID: "7"}, fb.sent[0])

	require.NotNil(t, s.Summary().LastMessage)
	assert.Equal(t, "Hello", s.Summary().LastMessage.Body)

	// the next poll does not duplicate it
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, countBody(s.Messages(), "Hello"))
}

func TestSession_SendRacingPoll(t *testing.T) {
	fb := newFakeBackend(t, 3)
	s := newSession(t, fb)
	require.NoError(t, s.Open(context.Background()))

	fb.sendHook = func(req SendRequest) (message.Raw, error) {
		raw := fb.store(req.Body)
		// a poll completes while the send is in flight
		require.NoError(t, s.Refresh(context.Background()))
		assert.Equal(t, 1, countBody(s.Messages(), "Hello"), "one bubble while the send is in flight")
		for _, m := range s.Messages() {
			assert.False(t, m.Pending)
		}
		return raw, nil
	}

	_, err := s.Send(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, 1, countBody(s.Messages(), "Hello"))
	assert.Equal(t, 4, s.View().Total)
}

func TestSession_SendFailure(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		sendErr error
		wantMsg string
		wantReq int
	}{
		{
			name:    "validation messages",
			body:    "Hello",
			sendErr: &core.RequestError{StatusCode: 400, Fields: []core.FieldError{{Field: "destinataire", Error: "invalid"}, {Field: "contenu", Error: "too long"}}},
			wantMsg: "contenu: too long; destinataire: invalid",
			wantReq: 1,
		},
		{
			name:    "backend detail",
			body:    "Hello",
			sendErr: &core.RequestError{StatusCode: 403, Message: "conversation closed by the school"},
			wantMsg: "conversation closed by the school",
			wantReq: 1,
		},
		{
			name:    "no detail",
			body:    "Hello",
			sendErr: &core.RequestError{Err: errors.New("connection reset")},
			wantMsg: DefaultSendErrorMessage,
			wantReq: 1,
		},
		{
			name:    "authentication",
			body:    "Hello",
			sendErr: errors.Wrap(core.ErrUnauthenticated, "send"),
			wantMsg: "authentication required",
			wantReq: 1,
		},
		{
			name:    "blank body",
			body:    "   ",
			wantMsg: "contenu: this field may not be blank",
		},
		{
			name:    "empty body",
			wantMsg: "contenu: this field is required",
		},
		{
			name:    "too long",
			body:    strings.Repeat("a", MaxBodyLength+1),
			wantMsg: "must be a maximum of",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend(t, 3)
			fb.sendHook = func(SendRequest) (message.Raw, error) { return message.Raw{}, tt.sendErr }
			s := newSession(t, fb)
			require.NoError(t, s.Open(context.Background()))

			_, err := s.Send(context.Background(), tt.body)
			var serr *SendError
			require.True(t, errors.As(err, &serr), "err = %v", err)
			assert.Contains(t, serr.Error(), tt.wantMsg)
			assert.Len(t, fb.sent, tt.wantReq)
			assert.Equal(t, 3, s.View().Total)
			assert.Zero(t, countBody(s.Messages(), tt.body))
		})
	}
}

func TestSession_SendAuthFailureIsDistinct(t *testing.T) {
	fb := newFakeBackend(t, 0)
	fb.sendHook = func(SendRequest) (message.Raw, error) { return message.Raw{}, core.ErrUnauthenticated }
	s := newSession(t, fb)

	_, err := s.Send(context.Background(), "Hello")
	assert.True(t, core.IsUnauthenticated(err))
}

func TestSession_pollingAndClose(t *testing.T) {
	fb := newFakeBackend(t, 2)
	s := newSession(t, fb)
	require.NoError(t, s.Open(context.Background()))

	require.NoError(t, s.StartPolling(5*time.Millisecond))
	require.NoError(t, s.StartPolling(5*time.Millisecond))
	fb.add(rawMsg(3, "polled", "7", base.Add(time.Hour)))
	require.Eventually(t, func() bool { return countBody(s.Messages(), "polled") == 1 }, time.Second, time.Millisecond)

	poller := s.Polling()
	s.Close()
	select {
	case <-poller.Done():
	default:
		t.Fatal("poller still running after Close")
	}

	fetches := fb.fetchCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, fetches, fb.fetchCount())

	assert.Equal(t, ErrClosed, s.Refresh(context.Background()))
	assert.Equal(t, ErrClosed, s.Open(context.Background()))
	assert.Equal(t, ErrClosed, s.StartPolling(time.Millisecond))
	_, err := s.Send(context.Background(), "Hello")
	assert.Equal(t, ErrClosed, err)
	assert.Empty(t, s.Messages())
	s.Close()
}

func TestSession_lateResultAfterClose(t *testing.T) {
	fb := newFakeBackend(t, 4)
	s := newSession(t, fb)

	entered, release := make(chan struct{}), make(chan struct{})
	fb.beforeFetch = func() {
		close(entered)
		<-release
	}

	done := make(chan error)
	go func() { done <- s.Open(context.Background()) }()

	<-entered
	s.Close()
	close(release)

	require.NoError(t, <-done)
	assert.Empty(t, s.Messages())
	assert.Zero(t, fb.marks)
}

func TestPoller(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		log, logs := testutil.NewLogger(t)
		var (
			mu    sync.Mutex
			calls int
		)
		p := NewPoller(time.Millisecond, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return &core.RequestError{StatusCode: 503}
		}, log)
		p.Start(context.Background())

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return calls >= 3
		}, time.Second, time.Millisecond)
		p.Stop()
		p.Stop()
		assert.NoError(t, p.Err())

		assert.NotEmpty(t, testutil.Messages(logs, zapcore.WarnLevel))
		assert.Empty(t, testutil.Messages(logs, zapcore.ErrorLevel))
	})

	t.Run("stops on authentication errors", func(t *testing.T) {
		log, logs := testutil.NewLogger(t)
		p := NewPoller(time.Millisecond, func(context.Context) error {
			return errors.Wrap(core.ErrUnauthenticated, "fetch")
		}, log)
		p.Start(context.Background())

		select {
		case <-p.Done():
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
		assert.Equal(t, []string{"chat: polling stopped"}, testutil.Messages(logs, zapcore.ErrorLevel))
		assert.True(t, core.IsUnauthenticated(p.Err()), "err = %v", p.Err())
		p.Stop()
	})

	t.Run("non-positive interval", func(t *testing.T) {
		log, _ := testutil.NewLogger(t)
		for _, interval := range []time.Duration{0, -time.Second} {
			p := NewPoller(interval, func(context.Context) error { return nil }, log)
			assert.Equal(t, DefaultPollInterval, p.interval)
			p.Start(context.Background())
			p.Stop()
		}

		s := newSession(t, newFakeBackend(t, 1))
		require.NoError(t, s.StartPolling(0))
		assert.Equal(t, DefaultPollInterval, s.Polling().interval)
	})

	t.Run("stop before start", func(t *testing.T) {
		log, _ := testutil.NewLogger(t)
		p := NewPoller(time.Millisecond, func(context.Context) error { return nil }, log)
		p.Stop()
	})
}

func TestInbox(t *testing.T) {
	log, _ := testutil.NewLogger(t)
	fb := newFakeBackend(t, 0)
	fb.convs = []conversation.Raw{
		rawConv(t, `{"id": 1, "other_user": {"id": 7, "nom": "Jean Mbuyi", "role": "parent"}, "last_message": {"contenu": "a", "date_envoi": "2024-01-01T10:00:00Z"}}`),
		rawConv(t, `{"id": 2, "other_user": {"id": 9, "username": "admin", "role": "admin"}, "participants": [{"id": 8, "nom": "Marie Kanku", "role": "parent"}], "last_message": {"contenu": "b", "date_envoi": "2024-01-03T10:00:00Z"}, "unread_count": 1}`),
		rawConv(t, `{"id": 3, "eleve": {"id": 4, "nom": "Amani", "parent_details": {"id": 11, "nom": "Paul Amani"}}, "updated_at": "2024-01-02T00:00:00Z"}`),
	}

	got, err := Inbox(context.Background(), fb, teacher, conversation.NewResolver(log))
	require.NoError(t, err)
	require.Len(t, got, 3)

	var ids, names []string
	for _, s := range got {
		ids = append(ids, s.ID)
		names = append(names, s.Other.Name)
	}
	assert.Equal(t, []string{"2", "3", "1"}, ids)
	assert.Equal(t, []string{"Marie Kanku", "Paul Amani", "Jean Mbuyi"}, names)
	assert.Equal(t, 1, got[0].UnreadCount)

	fb.convErr = core.ErrUnauthenticated
	_, err = Inbox(context.Background(), fb, teacher, conversation.NewResolver(log))
	assert.True(t, core.IsUnauthenticated(err))
}
