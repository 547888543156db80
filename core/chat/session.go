package chat

import (
	"context"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/conversation"
	"github.com/trezcool/masomo-portal/core/message"
	"github.com/trezcool/masomo-portal/core/user"
)

// View is what the conversation screen renders.
type View struct {
	Participant conversation.Participant
	Groups      []message.DayGroup // visible window, by day
	HasMore     bool
	Loading     bool // foreground load in progress
	Total       int  // messages in the thread, visible or not
}

// Session is one open conversation. It owns the thread, the pager and the resolved participant.
// Backend calls are made without holding the lock; their results are dropped once the session is closed.
type Session struct {
	backend  Backend
	id       string
	viewer   user.Viewer
	log      core.Logger
	resolver *conversation.Resolver
	loc      *time.Location
	now      func() time.Time
	pageSize int

	mu      sync.Mutex
	thread  *message.Thread
	pager   *message.Pager
	summary conversation.Summary
	loading bool
	closed  bool
	poller  *Poller
}

type Option func(*Session)

func WithPageSize(size int) Option {
	return func(s *Session) { s.pageSize = size }
}

// WithLocation sets the location of the calendar days messages are grouped by.
func WithLocation(loc *time.Location) Option {
	return func(s *Session) { s.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithResolver(r *conversation.Resolver) Option {
	return func(s *Session) { s.resolver = r }
}

func NewSession(backend Backend, conversationID string, viewer user.Viewer, log core.Logger, opts ...Option) (*Session, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(backend, "backend"),
		vala.IsNotNil(log, "log"),
		vala.StringNotEmpty(core.CleanString(conversationID), "conversationID"),
	).Check(); err != nil {
		return nil, errors.Wrap(err, "chat.NewSession")
	}
	if err := viewer.Validate(); err != nil {
		return nil, errors.Wrap(err, "chat.NewSession(viewer)")
	}

	s := &Session{
		backend:  backend,
		id:       core.CleanString(conversationID),
		viewer:   viewer,
		log:      log,
		now:      time.Now,
		pageSize: message.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = conversation.NewResolver(log)
	}
	s.thread = message.NewThread()
	s.pager = message.NewPager(s.pageSize)
	s.summary = conversation.Summary{ID: s.id, Other: s.placeholder()}
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) placeholder() conversation.Participant {
	p, _ := conversation.Placeholder(conversation.Raw{}, conversation.NewQuery(s.viewer))
	return p
}

// msgContext is the normalizer context. Callers hold the lock.
func (s *Session) msgContext() message.Context {
	return message.Context{Viewer: s.viewer, Counterpart: s.summary.Other.Sender(), Now: s.now}
}

// Open is the foreground load: conversation details, then messages. The pager goes back to the
// first page. On failure the messages already displayed are kept.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	raw, err := s.backend.FetchConversation(ctx, s.id)
	if err != nil {
		return errors.Wrapf(err, "chat.Open(%s).FetchConversation", s.id)
	}
	summary := s.resolver.Summarize(raw, s.viewer)
	if summary.ID == "" {
		summary.ID = s.id
	}

	raws, err := s.backend.FetchMessages(ctx, s.id)
	if err != nil {
		return errors.Wrapf(err, "chat.Open(%s).FetchMessages", s.id)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.summary = summary
	s.thread.Merge(message.NormalizeAll(raws, s.msgContext()))
	s.pager.Reset()
	s.mu.Unlock()

	s.markRead(ctx)
	return nil
}

// markRead is best-effort: a failure is logged, never returned.
func (s *Session) markRead(ctx context.Context) {
	n, err := s.backend.MarkRead(ctx, s.id)
	if err != nil {
		s.log.Warn("chat: mark read failed", err, map[string]interface{}{"conversation": s.id}, s.viewer)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.summary.UnreadCount = 0
	}
	s.log.Debug("chat: marked read", map[string]interface{}{"conversation": s.id, "marked": n})
}

// Refresh is the background fetch+merge. It neither resets the pager nor shows a loading state.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	raws, err := s.backend.FetchMessages(ctx, s.id)
	if err != nil {
		return errors.Wrapf(err, "chat.Refresh(%s)", s.id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.thread.Merge(message.NormalizeAll(raws, s.msgContext()))
	}
	return nil
}

// Send shows the message at once as pending, then replaces it with the server copy. When the
// backend fails the pending message is removed and a *SendError returned.
func (s *Session) Send(ctx context.Context, body string) (message.Message, error) {
	s.mu.Lock()
	req := SendRequest{Body: body, RecipientID: s.summary.Other.ID}
	s.mu.Unlock()
	if err := req.Validate(); err != nil {
		return message.Message{}, newSendError(err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return message.Message{}, ErrClosed
	}
	tmp := s.thread.AddOptimistic(body, s.viewer, s.now())
	s.mu.Unlock()

	raw, err := s.backend.SendMessage(ctx, s.id, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.thread.Remove(tmp.ID)
		s.log.Warn("chat: send failed", err, map[string]interface{}{"conversation": s.id}, s.viewer)
		return message.Message{}, newSendError(err)
	}

	confirmed := message.Normalize(raw, s.msgContext())
	if confirmed.Body == "" {
		confirmed.Body = body
	}
	confirmed.Mine, confirmed.Read, confirmed.Pending = true, true, false
	confirmed.Sender = tmp.Sender
	if s.closed {
		return confirmed, nil
	}
	if confirmed.ID == "" {
		// sent, but the server copy is unusable: the next refresh brings it in
		s.thread.Remove(tmp.ID)
		s.log.Warn("chat: sent message has no id", map[string]interface{}{"conversation": s.id})
		return confirmed, nil
	}
	s.thread.Confirm(tmp.ID, confirmed)
	s.summary.LastMessage = &conversation.Preview{Body: confirmed.Body, Timestamp: confirmed.Timestamp, Mine: true}
	return confirmed, nil
}

// LoadPrevious extends the visible window by one page of older messages.
func (s *Session) LoadPrevious() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.LoadPrevious(s.thread.Len())
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.thread.Messages()
	return View{
		Participant: s.summary.Other,
		Groups:      message.GroupByDay(s.pager.Window(msgs), s.loc),
		HasMore:     s.pager.HasMore(len(msgs)),
		Loading:     s.loading,
		Total:       len(msgs),
	}
}

// Messages returns the whole thread, oldest first.
func (s *Session) Messages() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread.Messages()
}

func (s *Session) Summary() conversation.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// StartPolling refreshes the thread every interval until Close.
func (s *Session) StartPolling(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.poller != nil {
		return nil
	}
	s.poller = NewPoller(interval, s.Refresh, s.log)
	s.poller.Start(context.Background())
	return nil
}

// Polling returns the running poller, if any.
func (s *Session) Polling() *Poller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poller
}

// Close stops the polling and discards the thread. Results of calls still in flight are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	poller := s.poller
	s.thread.Reset()
	s.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
}
