package inmemdb

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core/user"
)

func init() {
	hashCost = bcrypt.MinCost
}

func TestSeed(t *testing.T) {
	db := Open()
	now := time.Date(2024, time.March, 10, 14, 30, 0, 0, time.UTC)
	fx, err := Seed(db, now)
	require.NoError(t, err)

	t.Run("accounts", func(t *testing.T) {
		acc, err := db.AccountByUsername(" Kabila ")
		require.NoError(t, err)
		assert.Equal(t, fx.Teacher.ID, acc.ID)
		assert.Equal(t, user.RoleTeacher, acc.Role)
		assert.NoError(t, acc.CheckPassword(DemoPassword))
		assert.Error(t, acc.CheckPassword("nope"))

		_, err = db.AccountByUsername("nobody")
		assert.Equal(t, ErrNotFound, err)

		_, err = db.CreateAccount(Account{Username: "MBUYI"}, "")
		assert.Equal(t, ErrUsernameExists, err)

		parent, err := db.AccountByID(fx.Parent.ID)
		require.NoError(t, err)
		assert.Equal(t, fx.Student.ID, parent.StudentID)
	})

	t.Run("conversations by activity", func(t *testing.T) {
		convs := db.ConversationsOf(fx.Parent.ID)
		require.Len(t, convs, 3)
		assert.Equal(t, []string{fx.WithAdmin.ID, fx.WithTeacher.ID, fx.WithOtherTeacher.ID},
			[]string{convs[0].ID, convs[1].ID, convs[2].ID})

		assert.Len(t, db.ConversationsOf(fx.Teacher.ID), 1)
		assert.Empty(t, db.ConversationsOf("unknown"))
	})

	t.Run("messages", func(t *testing.T) {
		msgs := db.Messages(fx.WithTeacher.ID)
		require.Len(t, msgs, 25)
		for i := 1; i < len(msgs); i++ {
			assert.False(t, msgs[i].SentAt.Before(msgs[i-1].SentAt))
		}
		last, ok := db.LastMessage(fx.WithTeacher.ID)
		require.True(t, ok)
		assert.Equal(t, msgs[24], last)
		assert.Equal(t, last.SentAt, db.UpdatedAt(fx.WithTeacher))

		assert.Equal(t, 1, db.UnreadCount(fx.WithTeacher.ID, fx.Parent.ID))
		assert.Equal(t, 0, db.UnreadCount(fx.WithTeacher.ID, fx.Teacher.ID))
		assert.Equal(t, 1, db.UnreadCount(fx.WithAdmin.ID, fx.Parent.ID))
	})
}

func TestDB_AddMessage(t *testing.T) {
	db := Open()
	fx, err := Seed(db, time.Now())
	require.NoError(t, err)
	at := time.Now()

	msg, err := db.AddMessage(fx.WithTeacher.ID, fx.Teacher.ID, "  Merci  ", at)
	require.NoError(t, err)
	assert.Equal(t, "Merci", msg.Body)
	assert.Equal(t, at.UTC().Truncate(time.Second), msg.SentAt)
	assert.False(t, msg.Read)

	last, _ := db.LastMessage(fx.WithTeacher.ID)
	assert.Equal(t, msg.ID, last.ID)
	assert.Equal(t, fx.WithTeacher.ID, db.ConversationsOf(fx.Parent.ID)[0].ID)

	_, err = db.AddMessage(fx.WithTeacher.ID, fx.OtherTeacher.ID, "intrus", at)
	assert.Error(t, err)

	_, err = db.AddMessage("404", fx.Teacher.ID, "lost", at)
	assert.Equal(t, ErrNotFound, errors.Cause(err))

	assert.Equal(t, 2, db.MarkRead(fx.WithTeacher.ID, fx.Parent.ID))
	assert.Equal(t, 0, db.MarkRead(fx.WithTeacher.ID, fx.Parent.ID))
	assert.Equal(t, 0, db.UnreadCount(fx.WithTeacher.ID, fx.Parent.ID))
}

func TestConversation_Has(t *testing.T) {
	conv := Conversation{ParentID: "1", TeacherID: "2"}
	assert.True(t, conv.Has("1"))
	assert.True(t, conv.Has("2"))
	assert.False(t, conv.Has("3"))
	assert.False(t, conv.Has(""))
	assert.Equal(t, "2", conv.Other("1"))
	assert.Equal(t, "1", conv.Other("2"))
}
