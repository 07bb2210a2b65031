// file: internal/credential/credential.go

package credential

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no credential has been stored for a provider,
// i.e. registration has never been performed.
var ErrNotFound = errors.New("credential not found")

// Credential holds the OAuth2 token material for one provider.
// Exactly one credential is persisted per provider; it is created by the
// interactive registration flow and rotated on every refresh.
type Credential struct {
	ProviderID   string    `json:"providerId"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Expiry       time.Time `json:"expiry"`
	Scope        string    `json:"scope,omitempty"`
}

// Fresh reports whether the access token is still usable, treating tokens
// within skew of expiry as already expired so callers refresh proactively.
func (c *Credential) Fresh(now time.Time, skew time.Duration) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return false
	}
	return now.Before(c.Expiry.Add(-skew))
}

// Store persists credentials per provider. Save must replace atomically:
// a crash mid-write may never leave a corrupt credential behind.
type Store interface {
	Load(ctx context.Context, providerID string) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
}
