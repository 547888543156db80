package conversation

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/message"
	"github.com/trezcool/masomo-portal/core/user"
)

// Users is a lenient list of user summaries: anything but a JSON array decodes as an empty list.
type Users []message.RawUser

func (us *Users) UnmarshalJSON(data []byte) error {
	var items []message.RawUser
	if err := json.Unmarshal(data, &items); err != nil {
		*us = nil
		return nil
	}
	*us = items
	return nil
}

// RawStudent is the student a conversation is about, possibly with its parent's details.
type RawStudent struct {
	message.RawUser
	ParentDetails *message.RawUser `json:"parent_details,omitempty"`
	Parent        *message.RawUser `json:"parent,omitempty"`
}

func (s *RawStudent) UnmarshalJSON(data []byte) error {
	*s = RawStudent{}
	if err := s.RawUser.UnmarshalJSON(data); err != nil {
		return nil
	}
	var parents struct {
		ParentDetails *message.RawUser `json:"parent_details"`
		Parent        *message.RawUser `json:"parent"`
	}
	if err := json.Unmarshal(data, &parents); err == nil {
		s.ParentDetails, s.Parent = parents.ParentDetails, parents.Parent
	}
	return nil
}

// parent is the first non-empty nested parent record.
func (s *RawStudent) parent() *message.RawUser {
	if s == nil {
		return nil
	}
	if !s.ParentDetails.IsEmpty() {
		return s.ParentDetails
	}
	if !s.Parent.IsEmpty() {
		return s.Parent
	}
	return nil
}

// RawLastMessage is the last-message preview of a conversation. Besides the message record keys it
// may carry the sender's name and role inline. A bare string is read as the body.
type RawLastMessage struct {
	message.Raw
	SenderName     message.Lenient `json:"sender_name,omitempty"`
	SenderRole     message.Lenient `json:"sender_role,omitempty"`
	ExpediteurNom  message.Lenient `json:"expediteur_nom,omitempty"`
	ExpediteurRole message.Lenient `json:"expediteur_role,omitempty"`
}

func (m *RawLastMessage) UnmarshalJSON(data []byte) error {
	*m = RawLastMessage{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		return m.Contenu.UnmarshalJSON(data)
	case '{':
		type plain RawLastMessage
		var p plain
		if err := json.Unmarshal(data, &p); err == nil {
			*m = RawLastMessage(p)
		}
	}
	return nil
}

// Raw is a conversation record as returned by the school API. Any field may be absent or null.
type Raw struct {
	ID               message.Lenient  `json:"id"`
	OtherUser        *message.RawUser `json:"other_user,omitempty"`
	OtherParticipant *message.RawUser `json:"other_participant,omitempty"`
	Participants     Users            `json:"participants,omitempty"`
	Eleve            *RawStudent      `json:"eleve,omitempty"`
	Student          *RawStudent      `json:"student,omitempty"`
	LastMessage      *RawLastMessage  `json:"last_message,omitempty"`
	DernierMessage   *RawLastMessage  `json:"dernier_message,omitempty"`
	UnreadCount      message.Lenient  `json:"unread_count,omitempty"`
	UpdatedAt        message.Lenient  `json:"updated_at,omitempty"`
}

func (r Raw) student() *RawStudent {
	if r.Eleve != nil && !r.Eleve.IsEmpty() {
		return r.Eleve
	}
	if r.Student != nil && !r.Student.IsEmpty() {
		return r.Student
	}
	return nil
}

func (r Raw) lastMessage() *RawLastMessage {
	if r.LastMessage != nil {
		return r.LastMessage
	}
	return r.DernierMessage
}

// Participant is the resolved other party of a conversation.
type Participant struct {
	ID        string    `json:"id,omitempty"` // empty for placeholders
	Name      string    `json:"name"`
	Role      user.Role `json:"role"`
	Specialty string    `json:"specialty,omitempty"`
	Source    string    `json:"source"` // name of the strategy which resolved it
}

// Sender is the participant as message sender info.
func (p Participant) Sender() message.Sender {
	return message.Sender{ID: p.ID, Name: p.Name, Role: p.Role}
}

func (p Participant) IsPlaceholder() bool {
	return p.Source == SourcePlaceholder
}

// Preview is the last message of a conversation as shown in the inbox.
type Preview struct {
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"` // zero when unknown
	Mine      bool      `json:"mine"`
}

// Summary is an inbox entry.
type Summary struct {
	ID          string      `json:"id"`
	Other       Participant `json:"other"`
	StudentID   string      `json:"student_id,omitempty"`
	Student     string      `json:"student,omitempty"`
	LastMessage *Preview    `json:"last_message,omitempty"`
	UnreadCount int         `json:"unread_count"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// LastActivity is the time of the last message, or of the last update when there is none.
func (s Summary) LastActivity() time.Time {
	if s.LastMessage != nil && !s.LastMessage.Timestamp.IsZero() {
		return s.LastMessage.Timestamp
	}
	return s.UpdatedAt
}

// SortByActivity orders summaries by last activity, newest first.
func SortByActivity(summaries []Summary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivity().After(summaries[j].LastActivity())
	})
}

func newPreview(lm *RawLastMessage, viewer user.Viewer) *Preview {
	if lm == nil {
		return nil
	}
	p := &Preview{Body: lm.Body()}
	p.Timestamp, _ = message.ParseTimestamp(lm.Date())
	p.Mine = viewer.Is(lm.SenderID())
	if info := lm.SenderInfo(); info != nil {
		p.Mine = p.Mine || viewer.Is(string(info.ID))
	}
	if p.Body == "" && p.Timestamp.IsZero() {
		return nil
	}
	return p
}

func parseCount(l message.Lenient) int {
	n, err := strconv.Atoi(core.CleanString(string(l)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
