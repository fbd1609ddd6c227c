package dto

import (
	"time"

	chatdomain "chatsync-backend/internal/chat/domain"
)

type CreateAccountRequest struct {
	Email        string     `json:"email" binding:"required,email"`
	DisplayName  string     `json:"display_name"`
	AccessToken  string     `json:"access_token" binding:"required"`
	RefreshToken string     `json:"refresh_token"`
	TokenExpiry  *time.Time `json:"token_expiry"`
}

type AccountsResponse struct {
	Accounts []*chatdomain.Account `json:"accounts"`
}

type ConversationsResponse struct {
	Conversations []chatdomain.ConversationView `json:"conversations"`
	Total         int                           `json:"total"`
}
