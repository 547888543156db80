// Package inmemdb is the in-memory school database behind the development API.
package inmemdb

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUsernameExists = errors.New("username already exists")

	hashCost = bcrypt.DefaultCost
)

type (
	Account struct {
		ID           string
		Username     string
		Name         string
		Role         user.Role
		IsStaff      bool
		Specialty    string
		StudentID    string // parents: their child
		PasswordHash []byte
	}

	Student struct {
		ID       string
		Name     string
		ParentID string
	}

	// Conversation is between a parent and a teacher (or the administration) about a student.
	Conversation struct {
		ID        string
		ParentID  string
		TeacherID string
		StudentID string
		CreatedAt time.Time
	}

	Message struct {
		ID             string
		ConversationID string
		SenderID       string
		Body           string
		SentAt         time.Time
		Read           bool
	}
)

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), hashCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	a.PasswordHash = hash
	return nil
}

func (a Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// Has reports whether the user takes part in the conversation.
func (c Conversation) Has(userID string) bool {
	return userID != "" && (c.ParentID == userID || c.TeacherID == userID)
}

// Other is the id of the participant who is not userID.
func (c Conversation) Other(userID string) string {
	if c.ParentID == userID {
		return c.TeacherID
	}
	return c.ParentID
}

type DB struct {
	mutex    sync.RWMutex
	pkCount  int
	accounts map[string]*Account
	students map[string]*Student
	convs    map[string]*Conversation
	msgs     map[string][]*Message // by conversation
}

func Open() *DB {
	return &DB{
		accounts: make(map[string]*Account),
		students: make(map[string]*Student),
		convs:    make(map[string]*Conversation),
		msgs:     make(map[string][]*Message),
	}
}

// nextID is called with the write lock held.
func (db *DB) nextID() string {
	db.pkCount++
	return strconv.Itoa(db.pkCount)
}

func (db *DB) CreateAccount(acc Account, pwd string) (Account, error) {
	acc.Username = core.CleanString(acc.Username, true /* lower */)
	if pwd != "" {
		if err := acc.SetPassword(pwd); err != nil {
			return Account{}, err
		}
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()
	for _, a := range db.accounts {
		if a.Username == acc.Username {
			return Account{}, ErrUsernameExists
		}
	}
	acc.ID = db.nextID()
	db.accounts[acc.ID] = &acc
	return acc, nil
}

func (db *DB) AccountByID(id string) (Account, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if acc, ok := db.accounts[id]; ok {
		return *acc, nil
	}
	return Account{}, ErrNotFound
}

func (db *DB) AccountByUsername(username string) (Account, error) {
	username = core.CleanString(username, true /* lower */)
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	for _, acc := range db.accounts {
		if acc.Username == username {
			return *acc, nil
		}
	}
	return Account{}, ErrNotFound
}

func (db *DB) CreateStudent(st Student) (Student, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	var parent *Account
	if st.ParentID != "" {
		var ok bool
		if parent, ok = db.accounts[st.ParentID]; !ok {
			return Student{}, errors.Wrap(ErrNotFound, "parent")
		}
	}
	st.ID = db.nextID()
	db.students[st.ID] = &st
	if parent != nil {
		parent.StudentID = st.ID
	}
	return st, nil
}

func (db *DB) StudentByID(id string) (Student, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if st, ok := db.students[id]; ok {
		return *st, nil
	}
	return Student{}, ErrNotFound
}

func (db *DB) CreateConversation(conv Conversation) (Conversation, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	for _, id := range []string{conv.ParentID, conv.TeacherID} {
		if _, ok := db.accounts[id]; !ok {
			return Conversation{}, errors.Wrapf(ErrNotFound, "participant %q", id)
		}
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	conv.ID = db.nextID()
	db.convs[conv.ID] = &conv
	return conv, nil
}

func (db *DB) ConversationByID(id string) (Conversation, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if conv, ok := db.convs[id]; ok {
		return *conv, nil
	}
	return Conversation{}, ErrNotFound
}

// ConversationsOf lists the conversations of a user, most recently active first.
func (db *DB) ConversationsOf(userID string) []Conversation {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	var res []Conversation
	for _, conv := range db.convs {
		if conv.Has(userID) {
			res = append(res, *conv)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		ai, aj := db.updatedAt(res[i]), db.updatedAt(res[j])
		if ai.Equal(aj) {
			return lessID(res[i].ID, res[j].ID)
		}
		return ai.After(aj)
	})
	return res
}

// UpdatedAt is the time of the last message, or the creation time of an empty conversation.
func (db *DB) UpdatedAt(conv Conversation) time.Time {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.updatedAt(conv)
}

func (db *DB) updatedAt(conv Conversation) time.Time {
	if last := db.last(conv.ID); last != nil {
		return last.SentAt
	}
	return conv.CreatedAt
}

func (db *DB) last(convID string) *Message {
	var last *Message
	for _, m := range db.msgs[convID] {
		if last == nil || !m.SentAt.Before(last.SentAt) {
			last = m
		}
	}
	return last
}

// Messages lists the messages of a conversation, oldest first.
func (db *DB) Messages(convID string) []Message {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	res := make([]Message, 0, len(db.msgs[convID]))
	for _, m := range db.msgs[convID] {
		res = append(res, *m)
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].SentAt.Equal(res[j].SentAt) {
			return lessID(res[i].ID, res[j].ID)
		}
		return res[i].SentAt.Before(res[j].SentAt)
	})
	return res
}

func (db *DB) LastMessage(convID string) (Message, bool) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if last := db.last(convID); last != nil {
		return *last, true
	}
	return Message{}, false
}

func (db *DB) AddMessage(convID, senderID, body string, at time.Time) (Message, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	conv, ok := db.convs[convID]
	if !ok {
		return Message{}, errors.Wrapf(ErrNotFound, "conversation %q", convID)
	}
	if !conv.Has(senderID) {
		return Message{}, errors.Errorf("user %q is not part of conversation %q", senderID, convID)
	}
	msg := &Message{
		ID:             db.nextID(),
		ConversationID: convID,
		SenderID:       senderID,
		Body:           strings.TrimSpace(body),
		SentAt:         at.UTC().Truncate(time.Second),
	}
	db.msgs[convID] = append(db.msgs[convID], msg)
	return *msg, nil
}

// MarkRead marks the messages received by readerID as read, and returns how many were unread.
func (db *DB) MarkRead(convID, readerID string) int {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	var n int
	for _, m := range db.msgs[convID] {
		if m.SenderID != readerID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n
}

func (db *DB) UnreadCount(convID, userID string) int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	var n int
	for _, m := range db.msgs[convID] {
		if m.SenderID != userID && !m.Read {
			n++
		}
	}
	return n
}

func lessID(a, b string) bool {
	ia, errA := strconv.Atoi(a)
	ib, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return ia < ib
	}
	return a < b
}
