package domain

import "context"

// DirectoryUser is a remote directory record
type DirectoryUser struct {
	ID           string
	PrimaryEmail string
	FullName     string
}

// Directory looks up users in the remote directory.
// A missing user is reported as (nil, nil).
type Directory interface {
	GetUser(ctx context.Context, key string) (*DirectoryUser, error)
}

// MemberHint is what a space membership listing tells us about one member
type MemberHint struct {
	ExternalUserID string
	DisplayName    string
	Email          string
}

// ResolveContext carries the owning account and space a resolution happens for
type ResolveContext struct {
	AccountID         string
	AccountEmail      string
	AccountExternalID string
	AccountName       string
	SpaceID           string
	Members           []MemberHint
	Directory         Directory
}

// OwnerDomain is the email domain of the owning account
func (rc ResolveContext) OwnerDomain() string {
	return EmailDomain(NormalizeEmail(rc.AccountEmail))
}

// Member returns the membership hint for an id, or nil
func (rc ResolveContext) Member(externalUserID string) *MemberHint {
	externalUserID = NormalizeExternalID(externalUserID)
	for i := range rc.Members {
		if NormalizeExternalID(rc.Members[i].ExternalUserID) == externalUserID {
			return &rc.Members[i]
		}
	}
	return nil
}
