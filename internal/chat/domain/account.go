package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(token *oauth2.Token) error

// Account is one locally tracked mailbox that owns synchronized conversations
type Account struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	Email          string     `json:"email" gorm:"uniqueIndex;not null"`
	DisplayName    string     `json:"display_name"`
	ExternalUserID string     `json:"external_user_id,omitempty" gorm:"index"` // learned from the directory on sync
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenExpiry    time.Time  `json:"-"`
	LastSyncTime   *time.Time `json:"last_sync_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
