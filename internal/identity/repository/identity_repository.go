package repository

import (
	"errors"
	"fmt"
	"time"

	identitydomain "chatsync-backend/internal/identity/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// identityRepository implements IdentityRepository interface
type identityRepository struct {
	db    *gorm.DB
	locks *keyedMutex
	now   func() time.Time
}

// NewIdentityRepository creates a new instance of identityRepository
func NewIdentityRepository(db *gorm.DB) IdentityRepository {
	return &identityRepository{
		db:    db,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

func (r *identityRepository) Get(externalUserID string) (*identitydomain.Identity, error) {
	var identity identitydomain.Identity
	err := r.db.Where("external_user_id = ?", identitydomain.NormalizeExternalID(externalUserID)).First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

// Upsert serializes writers per key: in-process with a keyed mutex, across
// processes with a row lock inside the transaction.
func (r *identityRepository) Upsert(candidate identitydomain.Identity) (*identitydomain.Identity, error) {
	candidate.ExternalUserID = identitydomain.NormalizeExternalID(candidate.ExternalUserID)
	if candidate.ExternalUserID == "" {
		return nil, fmt.Errorf("external user id is required")
	}
	candidate.Email = identitydomain.NormalizeEmail(candidate.Email)
	if candidate.EmailDomain == "" {
		candidate.EmailDomain = identitydomain.EmailDomain(candidate.Email)
	}

	unlock := r.locks.Lock(candidate.ExternalUserID)
	defer unlock()

	var result identitydomain.Identity
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := r.now()
		locking := clause.Locking{Strength: "UPDATE"}

		var existing identitydomain.Identity
		err := tx.Clauses(locking).Where("external_user_id = ?", candidate.ExternalUserID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row := candidate
			row.FirstSeen = now
			row.LastSeen = now
			row.SeenCount = 1
			row.CreatedAt = now
			row.UpdatedAt = now
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				result = row
				return nil
			}
			// Another process inserted first; merge into its row
			if err := tx.Clauses(locking).Where("external_user_id = ?", candidate.ExternalUserID).First(&existing).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		existing.Absorb(candidate, now)
		existing.UpdatedAt = now
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to upsert identity %s: %w", candidate.ExternalUserID, err)
	}
	return &result, nil
}

func (r *identityRepository) FindByEmail(email string) (*identitydomain.Identity, error) {
	email = identitydomain.NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	var identity identitydomain.Identity
	err := r.db.Where("email = ?", email).
		Order("confidence DESC, last_seen DESC").
		First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) Delete(externalUserID string) error {
	return r.db.Where("external_user_id = ?", identitydomain.NormalizeExternalID(externalUserID)).
		Delete(&identitydomain.Identity{}).Error
}
