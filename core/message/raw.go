package message

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Lenient is a JSON scalar read as a string whatever its JSON type (string, number, bool).
// null, objects and arrays read as "". It never fails to decode.
type Lenient string

func (l *Lenient) UnmarshalJSON(data []byte) error {
	*l = Lenient(strings.TrimSpace(decodeScalar(data)))
	return nil
}

func decodeScalar(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return s
	case 'n', '{', '[':
		return ""
	default:
		return string(data)
	}
}

func (l Lenient) String() string { return string(l) }

// Content is a message text. It decodes like Lenient but keeps the text as sent, surrounding
// whitespace included.
type Content string

func (c *Content) UnmarshalJSON(data []byte) error {
	*c = Content(decodeScalar(data))
	return nil
}

// Flag is a JSON boolean that also accepts 0/1 and "true"/"false" strings. Absent or null is nil.
type Flag struct {
	set   bool
	value bool
}

func NewFlag(b bool) *Flag { return &Flag{set: true, value: b} }

func (f *Flag) UnmarshalJSON(data []byte) error {
	var l Lenient
	_ = l.UnmarshalJSON(data)
	switch strings.ToLower(string(l)) {
	case "true", "1", "yes":
		*f = Flag{set: true, value: true}
	case "false", "0", "no":
		*f = Flag{set: true, value: false}
	default:
		*f = Flag{}
	}
	return nil
}

func (f *Flag) MarshalJSON() ([]byte, error) {
	if f == nil || !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// IsSet reports whether the flag was present with a boolean value.
func (f *Flag) IsSet() bool { return f != nil && f.set }

// Bool returns the flag value; false when unset.
func (f *Flag) Bool() bool { return f != nil && f.set && f.value }

// RawUser is a user summary as embedded in messages and conversations.
type RawUser struct {
	ID         Lenient `json:"id"`
	Username   Lenient `json:"username"`
	Name       Lenient `json:"name"`
	Nom        Lenient `json:"nom"`
	FirstName  Lenient `json:"first_name"`
	LastName   Lenient `json:"last_name"`
	Role       Lenient `json:"role"`
	IsStaff    *Flag   `json:"is_staff"`
	Specialite Lenient `json:"specialite"`
	Specialty  Lenient `json:"specialty"`
	Subject    Lenient `json:"subject"`
	Matiere    Lenient `json:"matiere"`
}

// UnmarshalJSON also accepts a bare id in place of the object.
func (u *RawUser) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*u = RawUser{}
	if len(data) == 0 || data[0] != '{' {
		return u.ID.UnmarshalJSON(data)
	}
	type plain RawUser
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	*u = RawUser(p)
	return nil
}

// DisplayName is the first available of name, nom, "first_name last_name" and username.
func (u *RawUser) DisplayName() string {
	if u == nil {
		return ""
	}
	full := strings.TrimSpace(string(u.FirstName) + " " + string(u.LastName))
	return firstNonEmpty(string(u.Name), string(u.Nom), full, string(u.Username))
}

func (u *RawUser) SpecialtyName() string {
	if u == nil {
		return ""
	}
	return firstNonEmpty(string(u.Specialite), string(u.Specialty), string(u.Subject), string(u.Matiere))
}

// IsEmpty reports whether the record carries neither an id nor a displayable name.
func (u *RawUser) IsEmpty() bool {
	return u == nil || (strings.TrimSpace(string(u.ID)) == "" && u.DisplayName() == "")
}

// SenderRef is the sender of a raw message: either a scalar id or a nested user object.
type SenderRef struct {
	ID      Lenient
	Details *RawUser
}

func (s *SenderRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var u RawUser
		if err := json.Unmarshal(data, &u); err == nil {
			*s = SenderRef{ID: u.ID, Details: &u}
		}
		return nil
	}
	return s.ID.UnmarshalJSON(data)
}

func (s SenderRef) MarshalJSON() ([]byte, error) {
	if s.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s.ID))
}

// Raw is a message record as returned by the school API. Any field may be absent or null.
type Raw struct {
	ID                Lenient   `json:"id"`
	Contenu           Content   `json:"contenu,omitempty"`
	Text              Content   `json:"text,omitempty"`
	DateEnvoi         Lenient   `json:"date_envoi,omitempty"`
	Timestamp         Lenient   `json:"timestamp,omitempty"`
	Expediteur        SenderRef `json:"expediteur"`
	Sender            SenderRef `json:"sender"`
	ExpediteurDetails *RawUser  `json:"expediteur_details,omitempty"`
	SenderDetails     *RawUser  `json:"sender_details,omitempty"`
	Lu                *Flag     `json:"lu,omitempty"`
	IsRead            *Flag     `json:"is_read,omitempty"`
}

// Body is the first non-empty content field.
func (r Raw) Body() string {
	if s := strings.TrimSpace(string(r.Contenu)); s != "" {
		return string(r.Contenu)
	}
	if s := strings.TrimSpace(string(r.Text)); s != "" {
		return string(r.Text)
	}
	return ""
}

func (r Raw) Date() string {
	return firstNonEmpty(string(r.DateEnvoi), string(r.Timestamp))
}

func (r Raw) SenderID() string {
	return firstNonEmpty(string(r.Expediteur.ID), string(r.Sender.ID))
}

// SenderInfo is the first non-empty nested sender record.
func (r Raw) SenderInfo() *RawUser {
	for _, u := range []*RawUser{r.ExpediteurDetails, r.SenderDetails, r.Expediteur.Details, r.Sender.Details} {
		if !u.IsEmpty() {
			return u
		}
	}
	return nil
}

func (r Raw) read() bool {
	if r.Lu.IsSet() {
		return r.Lu.Bool()
	}
	return r.IsRead.Bool()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
