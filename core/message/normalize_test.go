package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core/user"
)

var (
	fixedNow = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
	teacher  = user.Viewer{ID: "12", Role: user.RoleTeacher, Name: "Mme Kabila"}
	parent   = user.Viewer{ID: "7", Role: user.RoleParent, Name: "M. Tshisekedi"}
)

func decodeRaw(t *testing.T, data string) Raw {
	var raw Raw
	require.NoError(t, json.Unmarshal([]byte(data), &raw))
	return raw
}

func TestNormalize(t *testing.T) {
	ctx := Context{Viewer: teacher, Now: func() time.Time { return fixedNow }}
	withParent := ctx
	withParent.Counterpart = Sender{ID: "7", Name: "M. Tshisekedi", Role: user.RoleParent}

	tests := []struct {
		name string
		raw  string
		ctx  Context
		want Message
	}{
		{
			name: "primary keys, mine",
			raw:  `{"id": 1, "contenu": "Bonjour", "date_envoi": "2024-01-01T10:00:00Z", "expediteur": 12, "lu": true}`,
			ctx:  ctx,
			want: Message{
				ID: "1", Body: "Bonjour", Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Mine: true, Read: true,
				Sender: Sender{ID: "12", Name: YouLabel, Role: user.RoleTeacher},
			},
		},
		{
			name: "alternate keys with nested details",
			raw: `{"id": "m-2", "contenu": "  ", "text": "Hello", "timestamp": "2024-01-01 10:00:00", "sender": "7",
				"sender_details": {"id": 7, "first_name": "Jean", "last_name": "Mbuyi", "role": "parent"}, "is_read": 0}`,
			ctx: ctx,
			want: Message{
				ID: "m-2", Body: "Hello", Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				Sender: Sender{ID: "7", Name: "Jean Mbuyi", Role: user.RoleParent},
			},
		},
		{
			name: "mine through nested details only",
			raw:  `{"id": 3, "text": "ok", "expediteur_details": {"id": "12", "nom": "Kabila"}}`,
			ctx:  ctx,
			want: Message{
				ID: "3", Body: "ok", Timestamp: fixedNow, Mine: true,
				Sender: Sender{ID: "12", Name: YouLabel, Role: user.RoleTeacher},
			},
		},
		{
			name: "nested sender object without role",
			raw:  `{"id": 4, "contenu": "hi", "expediteur": {"id": 7, "username": "mzazi"}}`,
			ctx:  ctx,
			want: Message{
				ID: "4", Body: "hi", Timestamp: fixedNow,
				Sender: Sender{ID: "7", Name: "mzazi", Role: user.RoleParent},
			},
		},
		{
			name: "placeholder from counterpart",
			raw:  `{"id": 5, "contenu": "hi", "expediteur": 7}`,
			ctx:  withParent,
			want: Message{
				ID: "5", Body: "hi", Timestamp: fixedNow,
				Sender: Sender{ID: "7", Name: "M. Tshisekedi", Role: user.RoleParent},
			},
		},
		{
			name: "generic placeholder",
			raw:  `{"id": 6, "contenu": "hi", "expediteur": 99}`,
			ctx:  Context{Viewer: parent, Now: func() time.Time { return fixedNow }},
			want: Message{
				ID: "6", Body: "hi", Timestamp: fixedNow,
				Sender: Sender{ID: "99", Name: "Teacher", Role: user.RoleTeacher},
			},
		},
		{
			name: "malformed record",
			raw:  `{"id": 7, "contenu": null, "date_envoi": "yesterday-ish", "lu": "maybe", "expediteur": null}`,
			ctx:  ctx,
			want: Message{
				ID: "7", Timestamp: fixedNow,
				Sender: Sender{Name: "Parent", Role: user.RoleParent},
			},
		},
		{
			name: "empty record",
			raw:  `{}`,
			ctx:  ctx,
			want: Message{Timestamp: fixedNow, Sender: Sender{Name: "Parent", Role: user.RoleParent}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(decodeRaw(t, tt.raw), tt.ctx)
			assert.True(t, tt.want.Timestamp.Equal(got.Timestamp), "Timestamp = %v, want %v", got.Timestamp, tt.want.Timestamp)
			got.Timestamp = tt.want.Timestamp
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAll(t *testing.T) {
	var raws []Raw
	require.NoError(t, json.Unmarshal([]byte(`[{"id": 2, "contenu": "b"}, {"id": 1, "contenu": "a"}]`), &raws))

	msgs := NormalizeAll(raws, Context{Viewer: parent})
	require.Len(t, msgs, 2)
	assert.Equal(t, "2", msgs[0].ID)
	assert.Equal(t, "1", msgs[1].ID)
}

func TestRaw_bodyKeptAsSent(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "indented lines", data: `{"id": " 3 ", "contenu": "\n  - cahier\n  - stylo\n"}`, want: "\n  - cahier\n  - stylo\n"},
		{name: "blank contenu falls back to text", data: `{"id": 3, "contenu": "  ", "text": " Bonjour "}`, want: " Bonjour "},
		{name: "numeric body", data: `{"id": 3, "contenu": 42}`, want: "42"},
		{name: "null", data: `{"id": 3, "contenu": null}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decodeRaw(t, tt.data)
			assert.Equal(t, tt.want, raw.Body())
			assert.Equal(t, "3", raw.ID.String(), "ids are still trimmed")
			assert.Equal(t, tt.want, Normalize(raw, Context{Viewer: parent, Now: func() time.Time { return fixedNow }}).Body)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{in: "2024-01-01T10:00:00Z", want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), wantOK: true},
		{in: "2024-01-01T10:00:00.123456+01:00", want: time.Date(2024, 1, 1, 9, 0, 0, 123456000, time.UTC), wantOK: true},
		{in: "2024-01-01T10:00:00", want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), wantOK: true},
		{in: "2024-01-01 10:00:00", want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), wantOK: true},
		{in: "2024-01-01", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), wantOK: true},
		{in: "1704103200", want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), wantOK: true},
		{in: "1704103200000", want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), wantOK: true},
		{in: ""},
		{in: "lol"},
		{in: "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
