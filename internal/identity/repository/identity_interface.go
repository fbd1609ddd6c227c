package repository

import (
	identitydomain "chatsync-backend/internal/identity/domain"
)

// IdentityRepository defines the interface for identity store operations
type IdentityRepository interface {
	// Get returns the identity for an external user id, or nil if unknown
	Get(externalUserID string) (*identitydomain.Identity, error)
	// Upsert inserts a new identity or merges the candidate into the stored one
	Upsert(candidate identitydomain.Identity) (*identitydomain.Identity, error)
	// FindByEmail returns the most confident identity using the address, or nil
	FindByEmail(email string) (*identitydomain.Identity, error)
	// Delete removes an identity (administrative only)
	Delete(externalUserID string) error
}
