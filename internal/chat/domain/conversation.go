package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ConversationKind distinguishes one-to-one spaces from group spaces
type ConversationKind string

const (
	KindDirect ConversationKind = "DIRECT"
	KindGroup  ConversationKind = "GROUP"
)

// Participant is one member of a conversation as resolved at merge time
type Participant struct {
	ExternalUserID string `json:"external_user_id,omitempty"`
	Email          string `json:"email,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
}

// Message is one remote message embedded in its conversation
type Message struct {
	RemoteMessageID     string    `json:"remote_message_id"`
	Text                string    `json:"text"`
	CreateTime          time.Time `json:"create_time"`
	SenderExternalID    string    `json:"sender_external_id"`
	SenderDisplayName   string    `json:"sender_display_name,omitempty"`
	SenderEmail         string    `json:"sender_email,omitempty"`
	SenderDomain        string    `json:"sender_domain,omitempty"`
	IsFromOwningAccount bool      `json:"is_from_owning_account"`
}

// ParticipantList is stored as a JSON array column
type ParticipantList []Participant

// Value implements driver.Valuer
func (p ParticipantList) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]Participant(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (p *ParticipantList) Scan(value interface{}) error {
	return scanJSON(value, p)
}

// MessageList is stored as a JSON array column
type MessageList []Message

// Value implements driver.Valuer
func (m MessageList) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]Message(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *MessageList) Scan(value interface{}) error {
	return scanJSON(value, m)
}

func scanJSON(value interface{}, dest interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, dest)
}

// Conversation is one remote space as seen by one account
type Conversation struct {
	ID              string           `json:"id" gorm:"primaryKey"`
	AccountID       string           `json:"account_id" gorm:"uniqueIndex:idx_account_space;not null"`
	RemoteSpaceID   string           `json:"remote_space_id" gorm:"uniqueIndex:idx_account_space;index;not null"`
	Kind            ConversationKind `json:"kind" gorm:"size:16;not null"`
	Title           string           `json:"title"`
	Participants    ParticipantList  `json:"participants" gorm:"type:text"`
	Messages        MessageList      `json:"messages" gorm:"type:text"`
	MessageCount    int              `json:"message_count" gorm:"not null;default:0"`
	LastMessageTime *time.Time       `json:"last_message_time,omitempty" gorm:"index"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// HasMessage reports whether a remote message id is already stored
func (c *Conversation) HasMessage(remoteMessageID string) bool {
	for i := range c.Messages {
		if c.Messages[i].RemoteMessageID == remoteMessageID {
			return true
		}
	}
	return false
}

// AppendMessages adds the messages not stored yet, keeps createTime order
// and recomputes the derived counters. It returns how many were added.
func (c *Conversation) AppendMessages(incoming []Message) int {
	known := make(map[string]struct{}, len(c.Messages))
	for _, m := range c.Messages {
		known[m.RemoteMessageID] = struct{}{}
	}
	added := 0
	for _, m := range incoming {
		if _, ok := known[m.RemoteMessageID]; ok {
			continue
		}
		known[m.RemoteMessageID] = struct{}{}
		c.Messages = append(c.Messages, m)
		added++
	}
	sort.SliceStable(c.Messages, func(i, j int) bool {
		return c.Messages[i].CreateTime.Before(c.Messages[j].CreateTime)
	})
	c.Recount()
	return added
}

// Recount refreshes MessageCount and LastMessageTime from the stored messages
func (c *Conversation) Recount() {
	c.MessageCount = len(c.Messages)
	c.LastMessageTime = nil
	for i := range c.Messages {
		t := c.Messages[i].CreateTime
		if c.LastMessageTime == nil || t.After(*c.LastMessageTime) {
			ts := t
			c.LastMessageTime = &ts
		}
	}
}

// SyncReport summarizes one reconciliation pass
type SyncReport struct {
	AccountID            string    `json:"account_id"`
	NewConversations     int       `json:"new_conversations"`
	UpdatedConversations int       `json:"updated_conversations"`
	NewMessages          int       `json:"new_messages"`
	SkippedConversations int       `json:"skipped_conversations"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
}

// ConversationView is the API-ready form of a stored conversation
type ConversationView struct {
	ID              string           `json:"id"`
	RemoteSpaceID   string           `json:"remote_space_id"`
	Kind            ConversationKind `json:"kind"`
	Title           string           `json:"title"`
	Participant     *Participant     `json:"participant,omitempty"`
	MessageCount    int              `json:"message_count"`
	LastMessageTime *time.Time       `json:"last_message_time,omitempty"`
}
