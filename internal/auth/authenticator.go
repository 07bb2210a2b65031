// file: internal/auth/authenticator.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"fitness-connect/config"
	"fitness-connect/internal/credential"
	"fitness-connect/internal/logger"
	"fitness-connect/internal/metrics"
)

// AuthExpiredError indicates the refresh token itself was rejected.
// The only way out is re-running interactive registration.
type AuthExpiredError struct {
	Provider string
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("authorization for %q has expired: re-run 'fitness-connect register --provider %s'",
		e.Provider, e.Provider)
}

// CodePrompt collects the authorization code during interactive
// registration. Implementations block until the user completes the browser
// flow and enters the code; cancellation is the caller's job via ctx.
type CodePrompt interface {
	Code(ctx context.Context, authURL string) (string, error)
}

// Authenticator drives the OAuth2 authorization-code and refresh-token
// exchanges for all configured providers and owns credential persistence.
type Authenticator struct {
	store   credential.Store
	configs map[string]*oauth2.Config
	skew    time.Duration
	prompt  CodePrompt
	logger  *logger.Logger
	metrics *metrics.Metrics

	// Per-provider guard: concurrent EnsureValid calls serialize so only
	// one refresh exchange runs and the stored credential never goes stale.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an Authenticator for the given providers. metrics may be nil.
func New(store credential.Store, providers []config.ProviderConfig, skew time.Duration,
	prompt CodePrompt, log *logger.Logger, m *metrics.Metrics) *Authenticator {

	configs := make(map[string]*oauth2.Config, len(providers))
	for _, p := range providers {
		configs[p.ID] = &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURL,
			Scopes:       p.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  p.AuthURL,
				TokenURL: p.TokenURL,
				// Withings and Strava both want client credentials in the
				// request body, not basic auth.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
	}

	return &Authenticator{
		store:   store,
		configs: configs,
		skew:    skew,
		prompt:  prompt,
		logger:  log,
		metrics: m,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Register performs the one-time interactive authorization-code flow for a
// provider and persists the resulting credential. It blocks in the prompt
// until the user completes the browser redirect and enters the code.
func (a *Authenticator) Register(ctx context.Context, providerID string) (*credential.Credential, error) {
	cfg, err := a.providerConfig(providerID)
	if err != nil {
		return nil, err
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("provider %q: client id and secret are required for registration", providerID)
	}
	if a.prompt == nil {
		return nil, fmt.Errorf("provider %q: no authorization code prompt configured", providerID)
	}

	state := uuid.NewString()
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)

	a.logger.Info("starting interactive registration", "provider", providerID)

	code, err := a.prompt.Code(ctx, authURL)
	if err != nil {
		return nil, fmt.Errorf("authorization code entry for %q failed: %w", providerID, err)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange for %q failed: %w", providerID, err)
	}

	cred := credentialFromToken(providerID, tok, nil)
	if err := a.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to persist credential for %q: %w", providerID, err)
	}

	a.logger.Info("registration complete", "provider", providerID, "expiry", cred.Expiry)
	return cred, nil
}

// EnsureValid returns a credential whose access token is valid for at
// least the configured skew, refreshing and persisting it first when
// necessary. Returns credential.ErrNotFound when the provider was never
// registered and *AuthExpiredError when the refresh token is rejected.
func (a *Authenticator) EnsureValid(ctx context.Context, providerID string) (*credential.Credential, error) {
	cfg, err := a.providerConfig(providerID)
	if err != nil {
		return nil, err
	}

	lock := a.providerLock(providerID)
	lock.Lock()
	defer lock.Unlock()

	// Load under the lock: a concurrent caller may have refreshed already.
	cred, err := a.store.Load(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if cred.Fresh(time.Now(), a.skew) {
		return cred, nil
	}

	a.logger.Debug("access token expired, refreshing", "provider", providerID, "expiry", cred.Expiry)

	refreshed, err := a.refresh(ctx, cfg, cred)
	if err != nil {
		a.metrics.IncTokenRefresh(providerID, "failure")
		return nil, err
	}

	if err := a.store.Save(ctx, refreshed); err != nil {
		a.metrics.IncTokenRefresh(providerID, "failure")
		return nil, fmt.Errorf("failed to persist refreshed credential for %q: %w", providerID, err)
	}

	a.metrics.IncTokenRefresh(providerID, "success")
	a.logger.Info("access token refreshed", "provider", providerID, "expiry", refreshed.Expiry)
	return refreshed, nil
}

// refresh runs a single refresh-token exchange
func (a *Authenticator) refresh(ctx context.Context, cfg *oauth2.Config, cred *credential.Credential) (*credential.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, &AuthExpiredError{Provider: cred.ProviderID}
	}

	// Seed with an already-expired token so the source performs exactly one
	// refresh exchange instead of reusing the stale access token.
	seed := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	tok, err := cfg.TokenSource(ctx, seed).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil &&
			rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
			return nil, &AuthExpiredError{Provider: cred.ProviderID}
		}
		return nil, fmt.Errorf("refresh token exchange for %q failed: %w", cred.ProviderID, err)
	}

	return credentialFromToken(cred.ProviderID, tok, cred), nil
}

func (a *Authenticator) providerConfig(providerID string) (*oauth2.Config, error) {
	cfg, ok := a.configs[providerID]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", providerID)
	}
	return cfg, nil
}

func (a *Authenticator) providerLock(providerID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.locks[providerID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[providerID] = lock
	}
	return lock
}

// credentialFromToken converts an oauth2 token into a stored credential.
// Providers that do not rotate refresh tokens omit them from the refresh
// response, in which case the previous refresh token is carried over.
func credentialFromToken(providerID string, tok *oauth2.Token, prev *credential.Credential) *credential.Credential {
	cred := &credential.Credential{
		ProviderID:   providerID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if s, ok := tok.Extra("scope").(string); ok {
		cred.Scope = s
	}
	if cred.RefreshToken == "" && prev != nil {
		cred.RefreshToken = prev.RefreshToken
		if cred.Scope == "" {
			cred.Scope = prev.Scope
		}
	}
	return cred
}
