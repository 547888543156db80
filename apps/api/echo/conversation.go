package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/chat"
	inmemdb "github.com/trezcool/masomo-portal/storage/school/inmem"
)

var (
	errConvNotFoundInCtx = errors.New("conversation object not found in echo.Context")
	errNotARecipient     = "not a participant of this conversation"
)

type conversationApi struct {
	db       *inmemdb.DB
	pageSize int
	now      func() time.Time
}

func registerConversationAPI(g *echo.Group, jwt echo.MiddlewareFunc, db *inmemdb.DB, pageSize int) {
	api := conversationApi{db: db, pageSize: pageSize, now: time.Now}

	cg := g.Group("/conversations", jwt, portalMiddleware())
	cg.GET("", api.query)

	// detail endpoints
	dg := cg.Group("/:id", participantMiddleware(db))
	dg.GET("", api.retrieve)
	dg.GET("/messages", api.queryMessages)
	dg.POST("/messages", api.send)
	dg.POST("/mark-read", api.markRead)
}

func contextConversation(ctx echo.Context) (inmemdb.Conversation, error) {
	conv, ok := ctx.Get(contextObjectKey).(inmemdb.Conversation)
	if !ok {
		return inmemdb.Conversation{}, errors.Wrap(errConvNotFoundInCtx, "retrieving object from context")
	}
	return conv, nil
}

// Handlers

func (api *conversationApi) query(ctx echo.Context) error {
	viewer, err := contextViewer(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context viewer")
	}
	var page Pagination
	if err := page.Bind(ctx, api.pageSize); err != nil {
		return err
	}

	convs := api.db.ConversationsOf(viewer.ID)
	start, end, err := page.Bounds(len(convs))
	if err != nil {
		return err
	}

	ser := newSerializer(api.db)
	res := make([]ConversationResponse, 0, end-start)
	for _, conv := range convs[start:end] {
		res = append(res, ser.conversation(conv, viewer.ID))
	}
	return ctx.JSON(http.StatusOK, page.Response(ctx, len(convs), res))
}

func (api *conversationApi) retrieve(ctx echo.Context) error {
	conv, err := contextConversation(ctx)
	if err != nil {
		return err
	}
	viewer, err := contextViewer(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context viewer")
	}
	return ctx.JSON(http.StatusOK, newSerializer(api.db).conversation(conv, viewer.ID))
}

// queryMessages lists the messages oldest first.
func (api *conversationApi) queryMessages(ctx echo.Context) error {
	conv, err := contextConversation(ctx)
	if err != nil {
		return err
	}
	var page Pagination
	if err := page.Bind(ctx, api.pageSize); err != nil {
		return err
	}

	msgs := api.db.Messages(conv.ID)
	start, end, err := page.Bounds(len(msgs))
	if err != nil {
		return err
	}
	res := newSerializer(api.db).messages(msgs[start:end])
	return ctx.JSON(http.StatusOK, page.Response(ctx, len(msgs), res))
}

func (api *conversationApi) send(ctx echo.Context) error {
	conv, err := contextConversation(ctx)
	if err != nil {
		return err
	}
	viewer, err := contextViewer(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context viewer")
	}

	var data chat.SendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if rcpt := core.CleanString(data.RecipientID); rcpt != "" && rcpt != conv.Other(viewer.ID) {
		return core.NewValidationError(nil, core.FieldError{Field: "destinataire", Error: errNotARecipient})
	}

	msg, err := api.db.AddMessage(conv.ID, viewer.ID, data.Body, api.now())
	if err != nil {
		return errors.Wrap(err, "adding message")
	}
	return ctx.JSON(http.StatusCreated, newSerializer(api.db).message(msg))
}

func (api *conversationApi) markRead(ctx echo.Context) error {
	conv, err := contextConversation(ctx)
	if err != nil {
		return err
	}
	viewer, err := contextViewer(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context viewer")
	}
	return ctx.JSON(http.StatusOK, MarkReadResponse{Marked: api.db.MarkRead(conv.ID, viewer.ID)})
}
