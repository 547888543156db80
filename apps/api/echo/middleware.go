package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	inmemdb "github.com/trezcool/masomo-portal/storage/school/inmem"
)

var contextObjectKey = "object"

// portalMiddleware only lets parents and teachers through.
func portalMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			viewer, err := contextViewer(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context viewer")
			}
			if viewer.Role.IsValid() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// participantMiddleware loads the conversation `:id` into the context. Conversations the user is not
// part of are not found.
func participantMiddleware(db *inmemdb.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			viewer, err := contextViewer(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context viewer")
			}

			conv, err := db.ConversationByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == inmemdb.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding conversation by ID")
			}
			if !conv.Has(viewer.ID) {
				return errHttpNotFound
			}
			ctx.Set(contextObjectKey, conv)
			return next(ctx)
		}
	}
}
