package echoapi

import (
	"encoding/json"
	"time"

	inmemdb "github.com/trezcool/masomo-portal/storage/school/inmem"
)

// The response shapes follow the school API: numeric ids, French field names.
type (
	UserResponse struct {
		ID         json.Number `json:"id"`
		Username   string      `json:"username"`
		Nom        string      `json:"nom"`
		Role       string      `json:"role"`
		IsStaff    bool        `json:"is_staff,omitempty"`
		Specialite string      `json:"specialite,omitempty"`
		StudentID  string      `json:"student_id,omitempty"`
	}

	StudentResponse struct {
		ID            json.Number   `json:"id"`
		Nom           string        `json:"nom"`
		ParentDetails *UserResponse `json:"parent_details,omitempty"`
	}

	MessageResponse struct {
		ID                json.Number   `json:"id"`
		Contenu           string        `json:"contenu"`
		DateEnvoi         string        `json:"date_envoi"`
		Expediteur        json.Number   `json:"expediteur"`
		ExpediteurDetails *UserResponse `json:"expediteur_details,omitempty"`
		Lu                bool          `json:"lu"`
	}

	LastMessageResponse struct {
		Contenu        string      `json:"contenu"`
		DateEnvoi      string      `json:"date_envoi"`
		Expediteur     json.Number `json:"expediteur"`
		ExpediteurNom  string      `json:"expediteur_nom,omitempty"`
		ExpediteurRole string      `json:"expediteur_role,omitempty"`
	}

	ConversationResponse struct {
		ID             json.Number          `json:"id"`
		OtherUser      *UserResponse        `json:"other_user,omitempty"`
		Participants   []UserResponse       `json:"participants"`
		Eleve          *StudentResponse     `json:"eleve,omitempty"`
		DernierMessage *LastMessageResponse `json:"dernier_message"`
		UnreadCount    int                  `json:"unread_count"`
		UpdatedAt      string               `json:"updated_at"`
	}

	MarkReadResponse struct {
		Marked int `json:"marked"`
	}
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func newUserResponse(acc inmemdb.Account) UserResponse {
	return UserResponse{
		ID:         json.Number(acc.ID),
		Username:   acc.Username,
		Nom:        acc.Name,
		Role:       string(acc.Role),
		IsStaff:    acc.IsStaff,
		Specialite: acc.Specialty,
		StudentID:  acc.StudentID,
	}
}

// serializer builds the responses, caching the accounts it looks up.
type serializer struct {
	db       *inmemdb.DB
	accounts map[string]*UserResponse
}

func newSerializer(db *inmemdb.DB) *serializer {
	return &serializer{db: db, accounts: make(map[string]*UserResponse)}
}

func (s *serializer) user(id string) *UserResponse {
	if usr, ok := s.accounts[id]; ok {
		return usr
	}
	var usr *UserResponse
	if acc, err := s.db.AccountByID(id); err == nil {
		resp := newUserResponse(acc)
		usr = &resp
	}
	s.accounts[id] = usr
	return usr
}

func (s *serializer) message(msg inmemdb.Message) MessageResponse {
	return MessageResponse{
		ID:                json.Number(msg.ID),
		Contenu:           msg.Body,
		DateEnvoi:         formatTime(msg.SentAt),
		Expediteur:        json.Number(msg.SenderID),
		ExpediteurDetails: s.user(msg.SenderID),
		Lu:                msg.Read,
	}
}

func (s *serializer) messages(msgs []inmemdb.Message) []MessageResponse {
	res := make([]MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		res = append(res, s.message(msg))
	}
	return res
}

// conversation is the conversation as seen by viewerID.
func (s *serializer) conversation(conv inmemdb.Conversation, viewerID string) ConversationResponse {
	resp := ConversationResponse{
		ID:           json.Number(conv.ID),
		OtherUser:    s.user(conv.Other(viewerID)),
		Participants: []UserResponse{},
		UnreadCount:  s.db.UnreadCount(conv.ID, viewerID),
		UpdatedAt:    formatTime(s.db.UpdatedAt(conv)),
	}
	for _, id := range []string{conv.ParentID, conv.TeacherID} {
		if usr := s.user(id); usr != nil {
			resp.Participants = append(resp.Participants, *usr)
		}
	}
	if st, err := s.db.StudentByID(conv.StudentID); err == nil {
		resp.Eleve = &StudentResponse{ID: json.Number(st.ID), Nom: st.Name, ParentDetails: s.user(st.ParentID)}
	}
	if last, ok := s.db.LastMessage(conv.ID); ok {
		lm := &LastMessageResponse{
			Contenu:    last.Body,
			DateEnvoi:  formatTime(last.SentAt),
			Expediteur: json.Number(last.SenderID),
		}
		if sender := s.user(last.SenderID); sender != nil {
			lm.ExpediteurNom, lm.ExpediteurRole = sender.Nom, sender.Role
		}
		resp.DernierMessage = lm
	}
	return resp
}
