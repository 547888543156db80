package message

import (
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/masomo-portal/core/user"
)

// YouLabel is the sender name shown on the viewer's own messages.
const YouLabel = "You"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Context is what the Normalizer knows besides the raw record.
type Context struct {
	Viewer user.Viewer
	// Counterpart is the resolved other participant, when known. Its ID may be empty.
	Counterpart Sender
	// Now substitutes missing or unparseable timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (c Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Normalize maps one raw message onto its canonical form. It never fails: missing content reads as
// an empty body and a missing or unparseable date as Context.Now.
func Normalize(raw Raw, ctx Context) Message {
	msg := Message{
		ID:   strings.TrimSpace(string(raw.ID)),
		Body: raw.Body(),
		Read: raw.read(),
	}

	ts, ok := ParseTimestamp(raw.Date())
	if !ok {
		ts = ctx.now()
	}
	msg.Timestamp = ts

	details := raw.SenderInfo()
	var detailsID string
	if details != nil {
		detailsID = string(details.ID)
	}
	senderID := raw.SenderID()
	msg.Mine = ctx.Viewer.Is(senderID) || ctx.Viewer.Is(detailsID)

	switch {
	case msg.Mine:
		msg.Sender = Sender{ID: ctx.Viewer.ID, Name: YouLabel, Role: ctx.Viewer.Role}
	case details != nil:
		msg.Sender = Sender{
			ID:   firstNonEmpty(detailsID, senderID),
			Name: details.DisplayName(),
			Role: user.ParseRole(string(details.Role)),
		}
		if msg.Sender.Role == user.RoleUnknown {
			msg.Sender.Role = counterpartRole(ctx)
		}
		if msg.Sender.Name == "" {
			msg.Sender.Name = placeholderName(ctx)
		}
	default:
		msg.Sender = Sender{ID: senderID, Name: placeholderName(ctx), Role: counterpartRole(ctx)}
	}
	return msg
}

// NormalizeAll normalizes a batch, keeping its order.
func NormalizeAll(raws []Raw, ctx Context) []Message {
	msgs := make([]Message, 0, len(raws))
	for _, raw := range raws {
		msgs = append(msgs, Normalize(raw, ctx))
	}
	return msgs
}

// ParseTimestamp parses the date formats used by the school API: RFC 3339 and its variants without
// zone or with a space separator (read as UTC), plain dates, and Unix epochs in seconds or milliseconds.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		if n >= 1e12 { // milliseconds
			return time.UnixMilli(int64(n)).UTC(), true
		}
		sec := int64(n)
		return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC(), true
	}
	return time.Time{}, false
}

func counterpartRole(ctx Context) user.Role {
	if ctx.Counterpart.Role != user.RoleUnknown {
		return ctx.Counterpart.Role
	}
	return ctx.Viewer.Role.Counterpart()
}

func placeholderName(ctx Context) string {
	if name := strings.TrimSpace(ctx.Counterpart.Name); name != "" {
		return name
	}
	return counterpartRole(ctx).Label()
}
