package domain

import (
	"regexp"
	"strings"
	"time"
)

// Provenance tags how an identity was resolved
type Provenance string

const (
	ProvenanceRemoteDirectory   Provenance = "remote-directory"
	ProvenanceMembershipList    Provenance = "membership-list"
	ProvenanceMessageAuthorship Provenance = "message-authorship"
	ProvenanceHeuristicFallback Provenance = "heuristic-fallback"
	ProvenanceManual            Provenance = "manual"
)

// Confidence scores. Directory > membership > authorship > fallback must hold.
const (
	ConfidenceManual            = 100
	ConfidenceRemoteDirectory   = 95
	ConfidenceMembershipList    = 90
	ConfidenceMessageAuthorship = 85
	ConfidenceTrusted           = 70
	ConfidenceNumericWithDomain = 35
	ConfidenceNumeric           = 30
	ConfidenceUnknown           = 20
)

// Identity is one human (or bot) behind an opaque remote user identifier
type Identity struct {
	ExternalUserID string     `json:"external_user_id" gorm:"primaryKey;size:190"`
	DisplayName    string     `json:"display_name"`
	Email          string     `json:"email" gorm:"index;size:320"`
	EmailDomain    string     `json:"email_domain" gorm:"size:255"`
	Confidence     int        `json:"confidence" gorm:"not null;default:0"`
	ResolvedBy     Provenance `json:"resolved_by" gorm:"size:32;not null"`
	FirstSeen      time.Time  `json:"first_seen"`
	LastSeen       time.Time  `json:"last_seen"`
	SeenCount      int        `json:"seen_count" gorm:"not null;default:0"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Identity) TableName() string {
	return "identities"
}

// IsTrusted reports whether the identity is good enough to show in place of a derived label
func (i *Identity) IsTrusted() bool {
	return i != nil && i.Confidence >= ConfidenceTrusted
}

// IsSettled reports whether the stored identity can be reused without asking the directory again.
// A trusted row without an email stays open until the directory answers, manual rows never do.
func (i *Identity) IsSettled() bool {
	if !i.IsTrusted() {
		return false
	}
	return i.Email != "" || i.ResolvedBy == ProvenanceManual
}

// Absorb merges a newly observed candidate into a stored identity.
// Fields are replaced only when the candidate is at least as confident,
// manual candidates always replace. Seen counters always advance.
func (i *Identity) Absorb(candidate Identity, now time.Time) {
	if candidate.ResolvedBy == ProvenanceManual || candidate.Confidence >= i.Confidence {
		i.DisplayName = candidate.DisplayName
		i.Email = candidate.Email
		i.EmailDomain = candidate.EmailDomain
		i.Confidence = candidate.Confidence
		i.ResolvedBy = candidate.ResolvedBy
	}
	if i.FirstSeen.IsZero() {
		i.FirstSeen = now
	}
	i.LastSeen = now
	i.SeenCount++
}

// NewIdentity builds a candidate with a normalized id and email
func NewIdentity(externalUserID, displayName, email string, confidence int, resolvedBy Provenance) Identity {
	email = NormalizeEmail(email)
	return Identity{
		ExternalUserID: NormalizeExternalID(externalUserID),
		DisplayName:    strings.TrimSpace(displayName),
		Email:          email,
		EmailDomain:    EmailDomain(email),
		Confidence:     confidence,
		ResolvedBy:     resolvedBy,
	}
}

var (
	numericPattern     = regexp.MustCompile(`^[0-9]+$`)
	longNumericPattern = regexp.MustCompile(`^[0-9]{10,}$`)
)

// NormalizeExternalID maps a bare numeric id to the users/{id} form used as store key
func NormalizeExternalID(id string) string {
	id = strings.TrimSpace(id)
	if numericPattern.MatchString(id) {
		return "users/" + id
	}
	return id
}

// IDSuffix returns the part of an identifier after the last slash
func IDSuffix(id string) string {
	id = strings.TrimSpace(id)
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

// IsLongNumericID reports whether the identifier has the platform's long numeric user id shape
func IsLongNumericID(id string) bool {
	return longNumericPattern.MatchString(IDSuffix(id))
}

// ShortLabel renders "User " plus the first 8 chars of the id suffix
func ShortLabel(id string) string {
	suffix := IDSuffix(id)
	if suffix == "" {
		return ""
	}
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return "User " + suffix
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the lower-case domain of an address, or ""
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// EmailLocalPart returns the part before "@", or ""
func EmailLocalPart(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	return email[:at]
}

// SameEmail compares two addresses ignoring case and surrounding space
func SameEmail(a, b string) bool {
	a, b = NormalizeEmail(a), NormalizeEmail(b)
	return a != "" && a == b
}
