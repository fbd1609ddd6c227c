package repository

import (
	"errors"
	"time"

	chatdomain "chatsync-backend/internal/chat/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationRepository defines the interface for conversation data access
type ConversationRepository interface {
	// FindByAccountAndSpace returns the row for (account, remote space), or nil
	FindByAccountAndSpace(accountID, remoteSpaceID string) (*chatdomain.Conversation, error)
	ListByAccount(accountID string) ([]*chatdomain.Conversation, error)
	// ListBySpace returns every account's row for one remote space
	ListBySpace(remoteSpaceID string) ([]*chatdomain.Conversation, error)
	Create(conversation *chatdomain.Conversation) error
	Update(conversation *chatdomain.Conversation) error
}

// conversationRepository implements ConversationRepository interface
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new instance of conversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{
		db: db,
	}
}

func (r *conversationRepository) FindByAccountAndSpace(accountID, remoteSpaceID string) (*chatdomain.Conversation, error) {
	var conversation chatdomain.Conversation
	err := r.db.Where("account_id = ? AND remote_space_id = ?", accountID, remoteSpaceID).First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conversation, nil
}

func (r *conversationRepository) ListByAccount(accountID string) ([]*chatdomain.Conversation, error) {
	var conversations []*chatdomain.Conversation
	err := r.db.Where("account_id = ?", accountID).
		Order("last_message_time DESC").
		Find(&conversations).Error
	return conversations, err
}

func (r *conversationRepository) ListBySpace(remoteSpaceID string) ([]*chatdomain.Conversation, error) {
	var conversations []*chatdomain.Conversation
	err := r.db.Where("remote_space_id = ?", remoteSpaceID).Find(&conversations).Error
	return conversations, err
}

func (r *conversationRepository) Create(conversation *chatdomain.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	conversation.CreatedAt = time.Now()
	conversation.UpdatedAt = time.Now()
	return r.db.Create(conversation).Error
}

func (r *conversationRepository) Update(conversation *chatdomain.Conversation) error {
	conversation.UpdatedAt = time.Now()
	return r.db.Save(conversation).Error
}
