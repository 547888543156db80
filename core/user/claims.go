package user

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"`
	IsParent     bool   `json:"is_parent,omitempty"`  // -> PARENT PORTAL
	IsTeacher    bool   `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	StudentID    string `json:"student_id,omitempty"`
}

// Viewer builds the Viewer described by the claims.
func (c Claims) Viewer() Viewer {
	role := ParseRole(c.Role)
	if role == RoleUnknown {
		switch {
		case c.IsTeacher:
			role = RoleTeacher
		case c.IsParent:
			role = RoleParent
		}
	}
	name := c.Name
	if name == "" {
		name = c.Username
	}
	return Viewer{ID: c.Subject, Role: role, Name: name, StudentID: c.StudentID}
}

// ViewerFromToken reads the viewer out of a bearer token WITHOUT verifying its signature:
// the portal cannot verify it and only uses it as a hint; the API stays the authority.
func ViewerFromToken(token string) (Viewer, error) {
	if token == "" {
		return Viewer{}, ErrInvalidToken
	}
	claims := new(Claims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return Viewer{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	return claims.Viewer(), nil
}
