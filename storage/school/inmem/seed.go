package inmemdb

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/user"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "masomo123"

// Fixtures are the records created by Seed.
type Fixtures struct {
	Admin        Account
	Teacher      Account
	OtherTeacher Account
	Parent       Account
	Student      Student

	// WithTeacher holds 25 messages over three days, the last ones unread by the parent.
	WithTeacher      Conversation
	WithOtherTeacher Conversation
	WithAdmin        Conversation
}

// Seed fills db with a demo school: one parent talking to two teachers and to the administration.
// Messages are dated relative to now.
func Seed(db *DB, now time.Time) (Fixtures, error) {
	var fx Fixtures
	var err error

	accounts := []struct {
		dst *Account
		acc Account
	}{
		{&fx.Admin, Account{Username: "admin", Name: "Administration", Role: user.RoleAdmin, IsStaff: true}},
		{&fx.Teacher, Account{Username: "kabila", Name: "Mme Kabila", Role: user.RoleTeacher, Specialty: "Mathématiques"}},
		{&fx.OtherTeacher, Account{Username: "tshala", Name: "M. Tshala", Role: user.RoleTeacher, Specialty: "Français"}},
		{&fx.Parent, Account{Username: "mbuyi", Name: "Jean Mbuyi", Role: user.RoleParent}},
	}
	for _, a := range accounts {
		if *a.dst, err = db.CreateAccount(a.acc, DemoPassword); err != nil {
			return fx, errors.Wrapf(err, "creating account %q", a.acc.Username)
		}
	}

	if fx.Student, err = db.CreateStudent(Student{Name: "Grace Mbuyi", ParentID: fx.Parent.ID}); err != nil {
		return fx, errors.Wrap(err, "creating student")
	}
	fx.Parent.StudentID = fx.Student.ID

	start := now.Add(-3 * 24 * time.Hour).Truncate(time.Hour)
	convs := []struct {
		dst       *Conversation
		teacherID string
	}{
		{&fx.WithTeacher, fx.Teacher.ID},
		{&fx.WithOtherTeacher, fx.OtherTeacher.ID},
		{&fx.WithAdmin, fx.Admin.ID},
	}
	for _, c := range convs {
		conv := Conversation{ParentID: fx.Parent.ID, TeacherID: c.teacherID, StudentID: fx.Student.ID, CreatedAt: start}
		if *c.dst, err = db.CreateConversation(conv); err != nil {
			return fx, errors.Wrap(err, "creating conversation")
		}
	}

	// 25 messages over three days, alternating senders
	for i := 0; i < 25; i++ {
		sender, body := fx.Parent.ID, fmt.Sprintf("Bonjour, question %d au sujet de Grace.", i/2+1)
		if i%2 == 1 {
			sender, body = fx.Teacher.ID, fmt.Sprintf("Réponse %d: Grace progresse bien.", i/2+1)
		}
		at := start.Add(time.Duration(i/9)*24*time.Hour + time.Duration(i%9)*20*time.Minute)
		if _, err = db.AddMessage(fx.WithTeacher.ID, sender, body, at); err != nil {
			return fx, errors.Wrap(err, "adding message")
		}
	}
	db.MarkRead(fx.WithTeacher.ID, fx.Teacher.ID)
	markAllButLast(db, fx.WithTeacher.ID, fx.Parent.ID, 1)

	seeded := []struct {
		conv   Conversation
		sender string
		body   string
		at     time.Time
	}{
		{fx.WithOtherTeacher, fx.Parent.ID, "Grace sera absente vendredi.", now.Add(-50 * time.Hour)},
		{fx.WithOtherTeacher, fx.OtherTeacher.ID, "Bien noté, merci.", now.Add(-49 * time.Hour)},
		{fx.WithAdmin, fx.Admin.ID, "Réunion des parents le 12 à 10h.", now.Add(-2 * time.Hour)},
	}
	for _, m := range seeded {
		if _, err = db.AddMessage(m.conv.ID, m.sender, m.body, m.at); err != nil {
			return fx, errors.Wrap(err, "adding message")
		}
	}
	db.MarkRead(fx.WithOtherTeacher.ID, fx.Parent.ID)
	db.MarkRead(fx.WithOtherTeacher.ID, fx.OtherTeacher.ID)
	return fx, nil
}

// markAllButLast marks read what readerID received, except their `unread` most recent messages.
func markAllButLast(db *DB, convID, readerID string, unread int) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	msgs := db.msgs[convID]
	var received []*Message
	for _, m := range msgs {
		if m.SenderID != readerID {
			received = append(received, m)
		}
	}
	for i, m := range received {
		m.Read = i < len(received)-unread
	}
}
