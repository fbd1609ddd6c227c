package repository

import (
	"errors"
	"strings"
	"time"

	chatdomain "chatsync-backend/internal/chat/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	Create(account *chatdomain.Account) error
	FindByID(id string) (*chatdomain.Account, error)
	FindByEmail(email string) (*chatdomain.Account, error)
	// FindByIDs returns the accounts found, keyed by id
	FindByIDs(ids []string) (map[string]*chatdomain.Account, error)
	List() ([]*chatdomain.Account, error)
	Update(account *chatdomain.Account) error
	// MarkSynced stamps lastSyncTime after a completed pass
	MarkSynced(id string, at time.Time) error
}

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) Create(account *chatdomain.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	return r.db.Create(account).Error
}

func (r *accountRepository) FindByID(id string) (*chatdomain.Account, error) {
	var account chatdomain.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByEmail(email string) (*chatdomain.Account, error) {
	var account chatdomain.Account
	err := r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByIDs(ids []string) (map[string]*chatdomain.Account, error) {
	result := make(map[string]*chatdomain.Account, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var accounts []*chatdomain.Account
	if err := r.db.Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, a := range accounts {
		result[a.ID] = a
	}
	return result, nil
}

func (r *accountRepository) List() ([]*chatdomain.Account, error) {
	var accounts []*chatdomain.Account
	err := r.db.Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) Update(account *chatdomain.Account) error {
	account.UpdatedAt = time.Now()
	return r.db.Save(account).Error
}

func (r *accountRepository) MarkSynced(id string, at time.Time) error {
	return r.db.Model(&chatdomain.Account{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_time": at,
			"updated_at":     time.Now(),
		}).Error
}
