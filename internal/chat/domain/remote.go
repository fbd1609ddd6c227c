package domain

import (
	"context"
	"time"

	identitydomain "chatsync-backend/internal/identity/domain"
)

// RemoteSpace is one entry of the remote space listing
type RemoteSpace struct {
	SpaceID     string
	Kind        ConversationKind
	DisplayName string
}

// RemoteMember is one entry of a space membership listing
type RemoteMember struct {
	ExternalUserID string
	DisplayName    string
	Email          string
}

// RemoteMessage is one entry of a space message listing
type RemoteMessage struct {
	MessageID         string
	Text              string
	CreateTime        time.Time
	SenderExternalID  string
	SenderDisplayName string
}

// RemoteClient is the remote directory and conversation feed bound to one account.
// List calls follow continuation tokens until exhausted.
type RemoteClient interface {
	identitydomain.Directory
	ListSpaces(ctx context.Context) ([]RemoteSpace, error)
	ListMembers(ctx context.Context, spaceID string) ([]RemoteMember, error)
	// ListMessages returns messages created after since (all when since is nil), oldest first
	ListMessages(ctx context.Context, spaceID string, since *time.Time) ([]RemoteMessage, error)
}

// ChatProvider opens remote clients for accounts
type ChatProvider interface {
	Open(ctx context.Context, account *Account, onTokenRefresh TokenUpdateFunc) (RemoteClient, error)
}
