package backendsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/chat"
	"github.com/trezcool/masomo-portal/core/conversation"
	"github.com/trezcool/masomo-portal/core/device"
	"github.com/trezcool/masomo-portal/core/message"
	"github.com/trezcool/masomo-portal/core/user"
)

const maxErrorBody = 1 << 20

// Client talks to the school REST API. It authenticates with the access token kept in the device store.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	store    device.Store
	limiter  *rate.Limiter
	maxPages int
	log      core.Logger
}

var _ chat.Backend = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func New(conf *core.Config, store device.Store, log core.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(conf.API.BaseURL, "/") + "/")
	if err != nil {
		return nil, errors.Wrap(err, "parsing API base URL")
	}
	c := &Client{
		baseURL:  base,
		http:     &http.Client{Timeout: conf.API.Timeout},
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(conf.API.RequestsPerSecond), conf.API.Burst),
		maxPages: conf.API.MaxPages,
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolve makes ref absolute: a path relative to the API root ("v1/..."), or a `next` link which may
// be a full URL or a host-relative path.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrapf(err, "parsing URL %q", ref)
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// do sends one request. 401 gives core.ErrUnauthenticated, any other failure a *core.RequestError.
func (c *Client) do(ctx context.Context, method, ref string, in, out interface{}, authed bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &core.RequestError{Err: err}
	}
	target, err := c.resolve(ref)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, err := device.Token(c.store)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &core.RequestError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return core.ErrUnauthenticated
	case resp.StatusCode >= http.StatusBadRequest:
		return decodeError(resp)
	case out == nil || resp.StatusCode == http.StatusNoContent:
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.RequestError{StatusCode: resp.StatusCode, Message: "invalid response", Err: err}
	}
	return nil
}

// decodeError reads the error payloads of the API: {"error": "..."}, {"detail": "..."}, and field
// errors as {"field": "msg"} or {"field": ["msg", ...]}.
func decodeError(resp *http.Response) error {
	rerr := &core.RequestError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		rerr.Err = err
		return rerr
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		var msg string
		if json.Unmarshal(data, &msg) == nil {
			rerr.Message = core.CleanString(msg)
		}
		return rerr
	}
	for key, raw := range payload {
		msgs := errorMessages(raw)
		if len(msgs) == 0 {
			continue
		}
		switch key {
		case "error", "detail", "message":
			rerr.Message = strings.Join(msgs, " ")
		default:
			rerr.Fields = append(rerr.Fields, core.FieldError{Field: key, Error: strings.Join(msgs, " ")})
		}
	}
	return rerr
}

func errorMessages(raw json.RawMessage) []string {
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		if msg = core.CleanString(msg); msg != "" {
			return []string{msg}
		}
		return nil
	}
	var msgs []string
	if err := json.Unmarshal(raw, &msgs); err == nil {
		return msgs
	}
	return nil
}

// page is the pagination envelope of the API.
type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// fetchAll follows the `next` links from ref until exhausted. A bare JSON array is a single page.
// Pages run oldest first: when the first envelope announces more pages than maxPages, the walk
// restarts from the tail so the most recent maxPages pages are kept.
func fetchAll[T any](ctx context.Context, c *Client, ref string) ([]T, error) {
	var (
		all    []T
		jumped bool
	)
	for n := 0; ref != ""; n++ {
		if c.maxPages > 0 && n >= c.maxPages {
			c.log.Warn("backend: too many pages, truncating", map[string]interface{}{"ref": ref, "pages": n})
			break
		}
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, ref, nil, &raw, true); err != nil {
			return nil, err
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var items []T
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, &core.RequestError{StatusCode: http.StatusOK, Message: "invalid response", Err: err}
			}
			return append(all, items...), nil
		}

		var p page[T]
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &core.RequestError{StatusCode: http.StatusOK, Message: "invalid response", Err: err}
		}
		if n == 0 && !jumped && c.maxPages > 0 && p.Next != nil {
			if last := lastPage(p.Count, len(p.Results)); last > c.maxPages {
				from := last - c.maxPages + 1
				if tail, err := withPage(core.CleanString(*p.Next), from); err == nil {
					c.log.Warn("backend: too many pages, keeping the most recent", map[string]interface{}{
						"ref": ref, "pages": last, "from": from,
					})
					jumped = true
					ref, n = tail, -1
					continue
				}
			}
		}
		all = append(all, p.Results...)
		ref = ""
		if p.Next != nil {
			ref = core.CleanString(*p.Next)
		}
	}
	return all, nil
}

func lastPage(count, size int) int {
	if count <= 0 || size <= 0 {
		return 0
	}
	return (count + size - 1) / size
}

// withPage returns ref with its `page` query parameter set to n.
func withPage(ref string, n int) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func conversationPath(id string, parts ...string) string {
	return strings.Join(append([]string{"v1/conversations", url.PathEscape(id)}, parts...), "/")
}

func (c *Client) FetchConversations(ctx context.Context) ([]conversation.Raw, error) {
	convs, err := fetchAll[conversation.Raw](ctx, c, "v1/conversations")
	return convs, errors.Wrap(err, "fetching conversations")
}

func (c *Client) FetchConversation(ctx context.Context, id string) (conversation.Raw, error) {
	var raw conversation.Raw
	err := c.do(ctx, http.MethodGet, conversationPath(id), nil, &raw, true)
	return raw, errors.Wrapf(err, "fetching conversation %s", id)
}

func (c *Client) FetchMessages(ctx context.Context, id string) ([]message.Raw, error) {
	msgs, err := fetchAll[message.Raw](ctx, c, conversationPath(id, "messages")+"?page=1")
	return msgs, errors.Wrapf(err, "fetching messages of conversation %s", id)
}

func (c *Client) SendMessage(ctx context.Context, id string, req chat.SendRequest) (message.Raw, error) {
	var raw message.Raw
	err := c.do(ctx, http.MethodPost, conversationPath(id, "messages"), req, &raw, true)
	return raw, errors.Wrapf(err, "sending message to conversation %s", id)
}

type markReadResponse struct {
	Marked int `json:"marked"`
}

func (c *Client) MarkRead(ctx context.Context, id string) (int, error) {
	var resp markReadResponse
	err := c.do(ctx, http.MethodPost, conversationPath(id, "mark-read"), nil, &resp, true)
	return resp.Marked, errors.Wrapf(err, "marking conversation %s read", id)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string          `json:"token"`
		User  message.RawUser `json:"user"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return core.TranslateValidation(core.Validate.Struct(lr))
}

// Login exchanges the credentials for a token and the session of the user. It does not store them.
func (c *Client) Login(ctx context.Context, username, password string) (device.Session, error) {
	data := LoginRequest{Username: username, Password: password}
	if err := data.Validate(); err != nil {
		return device.Session{}, err
	}

	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "v1/users/login", data, &resp, false); err != nil {
		if core.IsUnauthenticated(err) {
			return device.Session{}, core.NewValidationError(errors.New("invalid credentials"))
		}
		return device.Session{}, errors.Wrap(err, "logging in")
	}
	if resp.Token == "" {
		return device.Session{}, &core.RequestError{StatusCode: http.StatusOK, Message: "no token in login response"}
	}

	viewer, err := user.ViewerFromToken(resp.Token)
	if err != nil {
		viewer = user.Viewer{}
	}
	viewer.ID = core.FirstNonEmpty(string(resp.User.ID), viewer.ID)
	if role := user.ParseRole(string(resp.User.Role)); role != user.RoleUnknown {
		viewer.Role = role
	}
	viewer.Name = core.FirstNonEmpty(resp.User.DisplayName(), viewer.Name)

	if err := viewer.Validate(); err != nil {
		return device.Session{}, errors.Wrap(err, "this account cannot use the portal")
	}
	return device.Session{Token: resp.Token, Viewer: viewer}, nil
}
