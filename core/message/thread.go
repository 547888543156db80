package message

import (
	"sort"
	"strings"
	"time"

	"github.com/trezcool/masomo-portal/core/user"
)

// Merge returns existing plus every incoming message whose id is not known yet, sorted by timestamp.
// It never drops an existing entry, so an empty (or failed) fetch cannot wipe the thread.
// Incoming temporary ids are ignored: only Thread.AddOptimistic creates them.
func Merge(existing, incoming []Message) []Message {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]Message, 0, len(existing)+len(incoming))
	for _, msg := range existing {
		seen[msg.ID] = struct{}{}
		merged = append(merged, msg)
	}
	for _, msg := range incoming {
		if msg.ID == "" || IsTemporaryID(msg.ID) {
			continue
		}
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		seen[msg.ID] = struct{}{}
		merged = append(merged, msg)
	}
	sortMessages(merged)
	return merged
}

func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

// Thread is the in-memory message list of one open conversation.
// Entries have unique ids and are sorted by timestamp after every mutation.
// A Thread is not safe for concurrent use; its owner serializes access.
type Thread struct {
	msgs []Message
}

func NewThread(msgs ...Message) *Thread {
	th := new(Thread)
	th.Merge(msgs)
	return th
}

// Merge adds the incoming messages which are not in the thread yet. A new message of the viewer
// takes the place of the oldest pending entry with the same body: it is the server copy of a send
// still in flight.
func (th *Thread) Merge(incoming []Message) {
	th.settlePending(incoming)
	th.msgs = Merge(th.msgs, incoming)
}

func (th *Thread) settlePending(incoming []Message) {
	var pending int
	for _, msg := range th.msgs {
		if msg.Pending {
			pending++
		}
	}
	if pending == 0 {
		return
	}

	known := make(map[string]struct{}, len(th.msgs))
	for _, msg := range th.msgs {
		known[msg.ID] = struct{}{}
	}
	settled := make(map[string]struct{})
	for _, in := range incoming {
		if !in.Mine || in.ID == "" || IsTemporaryID(in.ID) {
			continue
		}
		if _, ok := known[in.ID]; ok {
			continue
		}
		known[in.ID] = struct{}{}
		body := strings.TrimSpace(in.Body)
		for _, msg := range th.msgs { // oldest first
			if _, done := settled[msg.ID]; done || !msg.Pending || strings.TrimSpace(msg.Body) != body {
				continue
			}
			settled[msg.ID] = struct{}{}
			break
		}
	}
	if len(settled) == 0 {
		return
	}

	kept := th.msgs[:0]
	for _, msg := range th.msgs {
		if _, ok := settled[msg.ID]; !ok {
			kept = append(kept, msg)
		}
	}
	th.msgs = kept
}

// AddOptimistic appends a pending message authored by the viewer and returns it.
func (th *Thread) AddOptimistic(body string, viewer user.Viewer, now time.Time) Message {
	msg := Message{
		ID:        NewTemporaryID(),
		Body:      body,
		Timestamp: now,
		Mine:      true,
		Read:      true,
		Pending:   true,
		Sender:    Sender{ID: viewer.ID, Name: YouLabel, Role: viewer.Role},
	}
	th.msgs = append(th.msgs, msg)
	sortMessages(th.msgs)
	return msg
}

// Confirm replaces the temporary entry tempID with its server copy in one step.
// The server copy is not added twice if a refresh already brought it in (and settled tempID).
func (th *Thread) Confirm(tempID string, confirmed Message) {
	kept := th.msgs[:0]
	var found bool
	for _, msg := range th.msgs {
		if msg.ID == tempID {
			continue
		}
		if msg.ID == confirmed.ID {
			found = true
		}
		kept = append(kept, msg)
	}
	th.msgs = kept
	if !found && confirmed.ID != "" {
		confirmed.Pending = false
		th.msgs = append(th.msgs, confirmed)
	}
	sortMessages(th.msgs)
}

// Remove drops the entry with the given id, reporting whether it was there.
func (th *Thread) Remove(id string) bool {
	for i, msg := range th.msgs {
		if msg.ID == id {
			th.msgs = append(th.msgs[:i], th.msgs[i+1:]...)
			return true
		}
	}
	return false
}

func (th *Thread) Contains(id string) bool {
	for _, msg := range th.msgs {
		if msg.ID == id {
			return true
		}
	}
	return false
}

func (th *Thread) Len() int { return len(th.msgs) }

// Messages returns a copy of the thread entries, oldest first.
func (th *Thread) Messages() []Message {
	out := make([]Message, len(th.msgs))
	copy(out, th.msgs)
	return out
}

// Last returns the most recent entry.
func (th *Thread) Last() (Message, bool) {
	if len(th.msgs) == 0 {
		return Message{}, false
	}
	return th.msgs[len(th.msgs)-1], true
}

// Reset empties the thread.
func (th *Thread) Reset() {
	th.msgs = nil
}
