package user

import (
	"strings"

	"github.com/trezcool/masomo-portal/core"
)

// Role is the portal role of a user as reported by the school API.
type Role string

// Roles
const (
	RoleUnknown Role = ""
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

var (
	Roles = []Role{RoleParent, RoleTeacher, RoleAdmin}

	// the school API is not consistent about role names
	roleAliases = map[string]Role{
		"parent":         RoleParent,
		"parents":        RoleParent,
		"tuteur":         RoleParent,
		"teacher":        RoleTeacher,
		"teachers":       RoleTeacher,
		"enseignant":     RoleTeacher,
		"professeur":     RoleTeacher,
		"prof":           RoleTeacher,
		"admin":          RoleAdmin,
		"administrator":  RoleAdmin,
		"administrateur": RoleAdmin,
		"staff":          RoleAdmin,
		"system":         RoleAdmin,
	}
)

// ParseRole maps the role names used across the school API onto a Role.
// Unknown names give RoleUnknown.
func ParseRole(s string) Role {
	s = core.CleanString(s, true /* lower */)
	if i := strings.IndexByte(s, ':'); i > 0 { // "teacher:" style roles
		s = s[:i]
	}
	return roleAliases[s]
}

// Counterpart is the role of the person on the other side of a parent/teacher conversation.
func (r Role) Counterpart() Role {
	switch r {
	case RoleParent:
		return RoleTeacher
	case RoleTeacher:
		return RoleParent
	default:
		return RoleUnknown
	}
}

// Label is the generic display name for the role ("Parent", "Teacher").
func (r Role) Label() string {
	switch r {
	case RoleParent:
		return "Parent"
	case RoleTeacher:
		return "Teacher"
	case RoleAdmin:
		return "Administration"
	default:
		return "Unknown"
	}
}

func (r Role) IsValid() bool {
	return r == RoleParent || r == RoleTeacher
}

// Viewer is the current user of the portal. It is passed explicitly to every component
// instead of being re-read from the device storage.
type Viewer struct {
	ID        string `json:"id" validate:"required"`
	Role      Role   `json:"role" validate:"required,oneof=parent teacher"`
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
}

func (v Viewer) Validate() error {
	return core.TranslateValidation(core.Validate.Struct(v))
}

// Is reports whether id identifies the viewer.
func (v Viewer) Is(id string) bool {
	id = core.CleanString(id)
	return id != "" && id == core.CleanString(v.ID)
}
