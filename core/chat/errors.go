package chat

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

// DefaultSendErrorMessage is shown when a send fails without any detail.
const DefaultSendErrorMessage = "message not sent"

var ErrClosed = errors.New("conversation closed")

// SendError is a failed send. Its message aggregates what the backend reported.
type SendError struct {
	Message string
	Fields  []core.FieldError
	Err     error
}

func newSendError(err error) *SendError {
	serr := &SendError{Err: err}
	var verr *core.ValidationError
	switch rerr, ok := core.AsRequestError(err); {
	case core.IsUnauthenticated(err):
		serr.Message = core.ErrUnauthenticated.Error()
	case ok:
		serr.Message, serr.Fields = rerr.Message, rerr.Fields
	case errors.As(err, &verr):
		serr.Fields = verr.Fields
	}
	return serr
}

func (err *SendError) Error() string {
	if msg := core.FirstNonEmpty(err.Message, core.JoinFieldErrors(err.Fields)); msg != "" {
		return msg
	}
	return DefaultSendErrorMessage
}

func (err *SendError) Unwrap() error { return err.Err }
