package conversation

import (
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/message"
	"github.com/trezcool/masomo-portal/core/user"
)

// Strategy sources
const (
	SourceOtherUser     = "other_user"
	SourceParticipants  = "participants"
	SourceStudentParent = "student_parent"
	SourceLastMessage   = "last_message"
	SourcePlaceholder   = "placeholder"
)

// Query is what a strategy looks for: a user with the Expected role who is not excluded.
type Query struct {
	Viewer   user.Viewer
	Expected user.Role
	excluded map[string]struct{}
}

func NewQuery(viewer user.Viewer) Query {
	return Query{Viewer: viewer, Expected: viewer.Role.Counterpart()}
}

// Exclude returns a copy of the query which also rejects the user id.
func (q Query) Exclude(id string) Query {
	excluded := make(map[string]struct{}, len(q.excluded)+1)
	for k := range q.excluded {
		excluded[k] = struct{}{}
	}
	excluded[core.CleanString(id)] = struct{}{}
	q.excluded = excluded
	return q
}

func (q Query) Excludes(id string) bool {
	id = core.CleanString(id)
	if id == "" {
		return false
	}
	_, ok := q.excluded[id]
	return ok
}

// candidate checks u against the query. When strictRole is false a missing role reads as the
// expected one.
func (q Query) candidate(u *message.RawUser, source string, strictRole bool) (Participant, bool) {
	if u.IsEmpty() || IsAdmin(u) || q.Excludes(string(u.ID)) {
		return Participant{}, false
	}
	role := user.ParseRole(string(u.Role))
	switch {
	case role == user.RoleUnknown && !strictRole:
		role = q.Expected
	case role != q.Expected:
		return Participant{}, false
	}
	return Participant{
		ID:        core.CleanString(string(u.ID)),
		Name:      core.FirstNonEmpty(u.DisplayName(), role.Label()),
		Role:      role,
		Specialty: u.SpecialtyName(),
		Source:    source,
	}, true
}

// IsAdmin reports whether u is an administrator or system account, which is never shown as the
// other participant.
func IsAdmin(u *message.RawUser) bool {
	if u == nil {
		return false
	}
	return user.ParseRole(string(u.Role)) == user.RoleAdmin ||
		core.CleanString(string(u.Username), true) == "admin" ||
		u.IsStaff.Bool()
}

// Strategy is one step of the resolution cascade.
type Strategy struct {
	Name string
	Find func(raw Raw, q Query) (Participant, bool)
}

// DefaultStrategies is the resolution cascade, in order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: SourceOtherUser, Find: FromOtherUser},
		{Name: SourceParticipants, Find: FromParticipants},
		{Name: SourceStudentParent, Find: FromStudentParent},
		{Name: SourceLastMessage, Find: FromLastMessage},
		{Name: SourcePlaceholder, Find: Placeholder},
	}
}

// FromOtherUser uses the explicit other-participant field. A missing role is trusted.
func FromOtherUser(raw Raw, q Query) (Participant, bool) {
	for _, u := range []*message.RawUser{raw.OtherUser, raw.OtherParticipant} {
		if p, ok := q.candidate(u, SourceOtherUser, false); ok {
			return p, true
		}
	}
	return Participant{}, false
}

// FromParticipants picks the first participant with the expected role.
func FromParticipants(raw Raw, q Query) (Participant, bool) {
	for i := range raw.Participants {
		if p, ok := q.candidate(&raw.Participants[i], SourceParticipants, true); ok {
			return p, true
		}
	}
	return Participant{}, false
}

// FromStudentParent uses the parent details nested in the student record. Teachers only.
func FromStudentParent(raw Raw, q Query) (Participant, bool) {
	if q.Viewer.Role != user.RoleTeacher {
		return Participant{}, false
	}
	return q.candidate(raw.student().parent(), SourceStudentParent, false)
}

// FromLastMessage uses the sender recorded on the last-message preview.
func FromLastMessage(raw Raw, q Query) (Participant, bool) {
	lm := raw.lastMessage()
	if lm == nil {
		return Participant{}, false
	}
	info := lm.SenderInfo()
	if IsAdmin(info) {
		return Participant{}, false
	}

	var infoID, infoRole, infoName, specialty string
	if info != nil {
		infoID, infoRole, infoName, specialty = string(info.ID), string(info.Role), info.DisplayName(), info.SpecialtyName()
	}
	role := user.ParseRole(core.FirstNonEmpty(string(lm.SenderRole), string(lm.ExpediteurRole), infoRole))
	if role == user.RoleUnknown || role != q.Expected {
		return Participant{}, false
	}
	id := core.FirstNonEmpty(infoID, lm.SenderID())
	name := core.FirstNonEmpty(string(lm.SenderName), string(lm.ExpediteurNom), infoName)
	if (id == "" && name == "") || q.Excludes(id) {
		return Participant{}, false
	}
	return Participant{
		ID:        id,
		Name:      core.FirstNonEmpty(name, role.Label()),
		Role:      role,
		Specialty: specialty,
		Source:    SourceLastMessage,
	}, true
}

// Placeholder always matches with a generic "Parent"/"Teacher" participant without id.
func Placeholder(_ Raw, q Query) (Participant, bool) {
	return Participant{Name: q.Expected.Label(), Role: q.Expected, Source: SourcePlaceholder}, true
}
