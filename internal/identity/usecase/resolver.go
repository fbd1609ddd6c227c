package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	identitydomain "chatsync-backend/internal/identity/domain"
	"chatsync-backend/internal/identity/repository"

	"golang.org/x/sync/singleflight"
)

var ErrIdentityNotFound = errors.New("identity not found")

// Resolver turns opaque remote user ids into identities
type Resolver interface {
	// Resolve never fails: the worst case is a low-confidence fallback identity
	Resolve(ctx context.Context, externalUserID string, rc identitydomain.ResolveContext) identitydomain.Identity
	// Lookup is the read-only administrative view of the store
	Lookup(externalUserID string) (*identitydomain.Identity, error)
	// SetIdentity writes a manual override that always wins
	SetIdentity(externalUserID, displayName, email string) (*identitydomain.Identity, error)
	// DeleteIdentity removes a stored identity
	DeleteIdentity(externalUserID string) error
}

type resolver struct {
	store   repository.IdentityRepository
	lookups singleflight.Group
}

// NewResolver creates a resolver backed by the identity store
func NewResolver(store repository.IdentityRepository) Resolver {
	return &resolver{store: store}
}

func (r *resolver) Resolve(ctx context.Context, externalUserID string, rc identitydomain.ResolveContext) identitydomain.Identity {
	id := identitydomain.NormalizeExternalID(externalUserID)

	stored, err := r.store.Get(id)
	if err != nil {
		log.Printf("[IdentityResolver] store lookup failed for %s: %v", id, err)
	}
	if stored.IsSettled() {
		return r.save(*stored)
	}

	if candidate, ok := r.fromDirectory(ctx, externalUserID, id, rc); ok {
		return r.save(candidate)
	}
	if candidate, ok := fromMembership(id, rc); ok {
		return r.save(candidate)
	}
	if candidate, ok := fromAuthorship(id, rc); ok {
		return r.save(candidate)
	}
	return r.save(fallback(id, rc))
}

// save pushes the candidate through the store; on failure the candidate itself is returned
func (r *resolver) save(candidate identitydomain.Identity) identitydomain.Identity {
	merged, err := r.store.Upsert(candidate)
	if err != nil || merged == nil {
		log.Printf("[IdentityResolver] unable to persist %s: %v", candidate.ExternalUserID, err)
		return candidate
	}
	return *merged
}

// directoryKeys lists the lookup keys in priority order: as given, numeric suffix, users/{suffix}
func directoryKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	suffix := identitydomain.IDSuffix(raw)
	keys := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	for _, key := range []string{raw, suffix, "users/" + suffix} {
		if key == "" || key == "users/" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func (r *resolver) fromDirectory(ctx context.Context, raw, id string, rc identitydomain.ResolveContext) (identitydomain.Identity, bool) {
	if rc.Directory == nil {
		return identitydomain.Identity{}, false
	}
	for _, key := range directoryKeys(raw) {
		v, err, _ := r.lookups.Do(rc.AccountID+"|"+key, func() (interface{}, error) {
			return rc.Directory.GetUser(ctx, key)
		})
		if err != nil {
			log.Printf("[IdentityResolver] directory lookup %q failed: %v", key, err)
			continue
		}
		user, _ := v.(*identitydomain.DirectoryUser)
		if user == nil || (user.PrimaryEmail == "" && user.FullName == "") {
			continue
		}
		return identitydomain.NewIdentity(id, user.FullName, user.PrimaryEmail,
			identitydomain.ConfidenceRemoteDirectory, identitydomain.ProvenanceRemoteDirectory), true
	}
	return identitydomain.Identity{}, false
}

func fromMembership(id string, rc identitydomain.ResolveContext) (identitydomain.Identity, bool) {
	member := rc.Member(id)
	if member == nil || (member.Email == "" && strings.TrimSpace(member.DisplayName) == "") {
		return identitydomain.Identity{}, false
	}
	email := member.Email
	if email == "" && rc.AccountExternalID != "" && identitydomain.NormalizeExternalID(rc.AccountExternalID) == id {
		email = rc.AccountEmail
	}
	return identitydomain.NewIdentity(id, member.DisplayName, email,
		identitydomain.ConfidenceMembershipList, identitydomain.ProvenanceMembershipList), true
}

func fromAuthorship(id string, rc identitydomain.ResolveContext) (identitydomain.Identity, bool) {
	if rc.AccountExternalID == "" || rc.AccountEmail == "" {
		return identitydomain.Identity{}, false
	}
	if identitydomain.NormalizeExternalID(rc.AccountExternalID) != id {
		return identitydomain.Identity{}, false
	}
	name := rc.AccountName
	if name == "" {
		name = identitydomain.EmailLocalPart(rc.AccountEmail)
	}
	return identitydomain.NewIdentity(id, name, rc.AccountEmail,
		identitydomain.ConfidenceMessageAuthorship, identitydomain.ProvenanceMessageAuthorship), true
}

func fallback(id string, rc identitydomain.ResolveContext) identitydomain.Identity {
	suffix := identitydomain.IDSuffix(id)
	if !identitydomain.IsLongNumericID(id) {
		return identitydomain.NewIdentity(id, suffix, "",
			identitydomain.ConfidenceUnknown, identitydomain.ProvenanceHeuristicFallback)
	}
	domain := rc.OwnerDomain()
	if domain == "" {
		return identitydomain.NewIdentity(id, identitydomain.ShortLabel(id), "",
			identitydomain.ConfidenceNumeric, identitydomain.ProvenanceHeuristicFallback)
	}
	return identitydomain.NewIdentity(id, identitydomain.ShortLabel(id), "user-"+suffix+"@"+domain,
		identitydomain.ConfidenceNumericWithDomain, identitydomain.ProvenanceHeuristicFallback)
}

func (r *resolver) Lookup(externalUserID string) (*identitydomain.Identity, error) {
	identity, err := r.store.Get(externalUserID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrIdentityNotFound
	}
	return identity, nil
}

func (r *resolver) SetIdentity(externalUserID, displayName, email string) (*identitydomain.Identity, error) {
	if strings.TrimSpace(externalUserID) == "" {
		return nil, fmt.Errorf("external user id is required")
	}
	candidate := identitydomain.NewIdentity(externalUserID, displayName, email,
		identitydomain.ConfidenceManual, identitydomain.ProvenanceManual)
	return r.store.Upsert(candidate)
}

func (r *resolver) DeleteIdentity(externalUserID string) error {
	existing, err := r.store.Get(externalUserID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrIdentityNotFound
	}
	return r.store.Delete(externalUserID)
}
