package device

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

// Keys of the session values kept on the device.
const (
	KeyUserID           = "user_id"
	KeyUserRole         = "user_role"
	KeyUserName         = "user_name"
	KeyCurrentStudentID = "current_student_id"
	KeyAccessToken      = "access_token"
)

var (
	ErrNotFound = errors.New("key not found")

	SessionKeys = []string{KeyUserID, KeyUserRole, KeyUserName, KeyCurrentStudentID, KeyAccessToken}
)

// Store is the key→value storage of the device.
type Store interface {
	Get(key string) (string, error) // ErrNotFound when the key is not set
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Lookup returns the value of key, or "" when it is not set.
func Lookup(store Store, key string) (string, error) {
	v, err := store.Get(key)
	if errors.Cause(err) == ErrNotFound {
		return "", nil
	}
	return v, err
}

// Session is what the portal keeps on the device once the user is logged in.
type Session struct {
	Token  string
	Viewer user.Viewer
}

// SaveSession stores the token and the viewer. An empty student id removes the stored hint.
func SaveSession(store Store, s Session) error {
	values := map[string]string{
		KeyAccessToken:      s.Token,
		KeyUserID:           s.Viewer.ID,
		KeyUserRole:         string(s.Viewer.Role),
		KeyUserName:         s.Viewer.Name,
		KeyCurrentStudentID: s.Viewer.StudentID,
	}
	for _, key := range SessionKeys {
		var err error
		if v := values[key]; v != "" {
			err = store.Set(key, v)
		} else {
			err = store.Delete(key)
		}
		if err != nil {
			return errors.Wrapf(err, "device.SaveSession(%s)", key)
		}
	}
	return nil
}

// ClearSession removes every session value (logout).
func ClearSession(store Store) error {
	for _, key := range SessionKeys {
		if err := store.Delete(key); err != nil {
			return errors.Wrapf(err, "device.ClearSession(%s)", key)
		}
	}
	return nil
}

// Token is the stored access token. core.ErrUnauthenticated when there is none.
func Token(store Store) (string, error) {
	token, err := Lookup(store, KeyAccessToken)
	if err != nil {
		return "", errors.Wrap(err, "device.Token")
	}
	if token == "" {
		return "", core.ErrUnauthenticated
	}
	return token, nil
}

// LoadViewer reads the current user from the store. When the id or the role is missing, they are
// taken from the claims of the stored access token.
func LoadViewer(store Store) (user.Viewer, error) {
	var values [4]string
	for i, key := range []string{KeyUserID, KeyUserRole, KeyUserName, KeyCurrentStudentID} {
		v, err := Lookup(store, key)
		if err != nil {
			return user.Viewer{}, errors.Wrapf(err, "device.LoadViewer(%s)", key)
		}
		values[i] = v
	}
	viewer := user.Viewer{
		ID:        core.CleanString(values[0]),
		Role:      user.ParseRole(values[1]),
		Name:      core.CleanString(values[2]),
		StudentID: core.CleanString(values[3]),
	}

	if viewer.ID == "" || !viewer.Role.IsValid() {
		token, err := Token(store)
		if err != nil {
			return user.Viewer{}, err
		}
		claimed, err := user.ViewerFromToken(token)
		if err != nil {
			return user.Viewer{}, core.ErrUnauthenticated
		}
		viewer.ID = core.FirstNonEmpty(viewer.ID, claimed.ID)
		if !viewer.Role.IsValid() {
			viewer.Role = claimed.Role
		}
		viewer.Name = core.FirstNonEmpty(viewer.Name, claimed.Name)
		viewer.StudentID = core.FirstNonEmpty(viewer.StudentID, claimed.StudentID)
	}

	if err := viewer.Validate(); err != nil {
		return user.Viewer{}, core.ErrUnauthenticated
	}
	return viewer, nil
}
