package usecase

import (
	"context"
	"errors"

	chatdomain "chatsync-backend/internal/chat/domain"
	"chatsync-backend/internal/chat/dto"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrSyncInProgress  = errors.New("sync already in progress for account")
	ErrRemoteListing   = errors.New("remote conversation listing failed")
)

// ChatUsecase defines the interface for chat use cases
type ChatUsecase interface {
	CreateAccount(req *dto.CreateAccountRequest) (*chatdomain.Account, error)
	ListAccounts() ([]*chatdomain.Account, error)
	// SyncAccount runs one reconciliation pass. Only one pass per account runs at a time.
	SyncAccount(ctx context.Context, accountID string) (*chatdomain.SyncReport, error)
	// SyncAll syncs every account, skipping the ones already syncing
	SyncAll(ctx context.Context)
	// ListConversations never fails on storage errors, it returns an empty list instead
	ListConversations(accountID string) ([]chatdomain.ConversationView, error)
}
