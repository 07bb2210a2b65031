// file: internal/auth/authenticator_test.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fitness-connect/config"
	"fitness-connect/internal/credential"
	"fitness-connect/internal/logger"
)

const testSkew = 60 * time.Second

// tokenServer is a fake OAuth2 token endpoint that records exchanges
type tokenServer struct {
	srv *httptest.Server

	refreshCalls  atomic.Int64
	exchangeCalls atomic.Int64

	mu           sync.Mutex
	lastCode     string
	rejectStatus int  // when non-zero, all token requests fail with it
	omitRefresh  bool // respond without a refresh_token field
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}

	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		ts.mu.Lock()
		reject := ts.rejectStatus
		omitRefresh := ts.omitRefresh
		ts.mu.Unlock()

		if reject != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(reject)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}

		var n int64
		switch r.FormValue("grant_type") {
		case "refresh_token":
			n = ts.refreshCalls.Add(1)
		case "authorization_code":
			n = ts.exchangeCalls.Add(1)
			ts.mu.Lock()
			ts.lastCode = r.FormValue("code")
			ts.mu.Unlock()
		default:
			http.Error(w, "unsupported grant", http.StatusBadRequest)
			return
		}

		refreshField := fmt.Sprintf(`"refresh_token": "refresh-%d",`, n)
		if omitRefresh {
			refreshField = ""
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"access_token": "access-%d",
			%s
			"token_type": "Bearer",
			"expires_in": 3600,
			"scope": "user.metrics"
		}`, n, refreshField)
	}))

	t.Cleanup(ts.srv.Close)
	return ts
}

func newTestAuthenticator(t *testing.T, ts *tokenServer, prompt CodePrompt) (*Authenticator, credential.Store) {
	t.Helper()

	store := credential.NewFileStore(t.TempDir())
	providers := []config.ProviderConfig{
		{
			ID:           "withings",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			AuthURL:      ts.srv.URL + "/authorize",
			TokenURL:     ts.srv.URL + "/token",
			RedirectURL:  "http://localhost/exchange_token",
			Scopes:       []string{"user.metrics"},
		},
	}

	return New(store, providers, testSkew, prompt, logger.NewNopLogger(), nil), store
}

type staticPrompt struct {
	code string
	urls []string
}

func (p *staticPrompt) Code(_ context.Context, authURL string) (string, error) {
	p.urls = append(p.urls, authURL)
	return p.code, nil
}

func seedCredential(t *testing.T, store credential.Store, expiry time.Time) {
	t.Helper()
	err := store.Save(context.Background(), &credential.Credential{
		ProviderID:   "withings",
		AccessToken:  "stale-access",
		RefreshToken: "stored-refresh",
		Expiry:       expiry,
	})
	if err != nil {
		t.Fatalf("failed to seed credential: %v", err)
	}
}

func TestRegisterExchangesCodeAndPersists(t *testing.T) {
	ts := newTokenServer(t)
	prompt := &staticPrompt{code: "the-auth-code"}
	a, store := newTestAuthenticator(t, ts, prompt)

	cred, err := a.Register(context.Background(), "withings")
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if ts.exchangeCalls.Load() != 1 {
		t.Errorf("exchange calls = %d, want 1", ts.exchangeCalls.Load())
	}
	ts.mu.Lock()
	lastCode := ts.lastCode
	ts.mu.Unlock()
	if lastCode != "the-auth-code" {
		t.Errorf("exchanged code = %q, want the-auth-code", lastCode)
	}

	if cred.AccessToken != "access-1" || cred.RefreshToken != "refresh-1" {
		t.Errorf("credential tokens = %q/%q", cred.AccessToken, cred.RefreshToken)
	}
	if cred.Scope != "user.metrics" {
		t.Errorf("credential scope = %q, want user.metrics", cred.Scope)
	}

	stored, err := store.Load(context.Background(), "withings")
	if err != nil {
		t.Fatalf("credential was not persisted: %v", err)
	}
	if stored.AccessToken != cred.AccessToken {
		t.Errorf("persisted access token = %q, want %q", stored.AccessToken, cred.AccessToken)
	}

	if len(prompt.urls) != 1 {
		t.Fatalf("prompt shown %d times, want 1", len(prompt.urls))
	}
}

func TestRegisterRequiresClientCredentials(t *testing.T) {
	ts := newTokenServer(t)
	store := credential.NewFileStore(t.TempDir())
	providers := []config.ProviderConfig{{
		ID:       "withings",
		AuthURL:  ts.srv.URL + "/authorize",
		TokenURL: ts.srv.URL + "/token",
	}}
	a := New(store, providers, testSkew, &staticPrompt{code: "x"}, logger.NewNopLogger(), nil)

	if _, err := a.Register(context.Background(), "withings"); err == nil {
		t.Errorf("Register() succeeded without client credentials")
	}
}

func TestEnsureValidFreshTokenSkipsRefresh(t *testing.T) {
	ts := newTokenServer(t)
	a, store := newTestAuthenticator(t, ts, nil)
	seedCredential(t, store, time.Now().Add(time.Hour))

	cred, err := a.EnsureValid(context.Background(), "withings")
	if err != nil {
		t.Fatalf("EnsureValid() failed: %v", err)
	}

	if cred.AccessToken != "stale-access" {
		t.Errorf("access token = %q, want the stored one", cred.AccessToken)
	}
	if ts.refreshCalls.Load() != 0 {
		t.Errorf("refresh calls = %d, want 0 for a fresh token", ts.refreshCalls.Load())
	}
}

func TestEnsureValidRefreshesExpiredToken(t *testing.T) {
	ts := newTokenServer(t)
	a, store := newTestAuthenticator(t, ts, nil)
	seedCredential(t, store, time.Now().Add(-time.Minute))

	cred, err := a.EnsureValid(context.Background(), "withings")
	if err != nil {
		t.Fatalf("EnsureValid() failed: %v", err)
	}

	if ts.refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", ts.refreshCalls.Load())
	}
	if cred.AccessToken != "access-1" {
		t.Errorf("access token = %q, want access-1", cred.AccessToken)
	}
	if !cred.Fresh(time.Now(), testSkew) {
		t.Errorf("refreshed credential is not fresh: expiry %v", cred.Expiry)
	}

	// Rotation must be persisted before EnsureValid returns
	stored, err := store.Load(context.Background(), "withings")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if stored.AccessToken != "access-1" {
		t.Errorf("persisted access token = %q, want access-1", stored.AccessToken)
	}
}

func TestEnsureValidWithinSkewRefreshes(t *testing.T) {
	ts := newTokenServer(t)
	a, store := newTestAuthenticator(t, ts, nil)
	// Not yet expired but inside the skew window
	seedCredential(t, store, time.Now().Add(30*time.Second))

	if _, err := a.EnsureValid(context.Background(), "withings"); err != nil {
		t.Fatalf("EnsureValid() failed: %v", err)
	}
	if ts.refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1 inside skew window", ts.refreshCalls.Load())
	}
}

func TestEnsureValidRotatesRefreshToken(t *testing.T) {
	ts := newTokenServer(t)
	a, store := newTestAuthenticator(t, ts, nil)
	seedCredential(t, store, time.Now().Add(-time.Minute))

	cred, err := a.EnsureValid(context.Background(), "withings")
	if err != nil {
		t.Fatalf("EnsureValid() failed: %v", err)
	}
	if cred.RefreshToken != "refresh-1" {
		t.Errorf("refresh token = %q, want the rotated refresh-1", cred.RefreshToken)
	}
}

func TestEnsureValidKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	ts := newTokenServer(t)
	ts.mu.Lock()
	ts.omitRefresh = true
	ts.mu.Unlock()

	a, store := newTestAuthenticator(t, ts, nil)
	seedCredential(t, store, time.Now().Add(-time.Minute))

	cred, err := a.EnsureValid(context.Background(), "withings")
	if err != nil {
		t.Fatalf("EnsureValid() failed: %v", err)
	}
	if cred.RefreshToken != "stored-refresh" {
		t.Errorf("refresh token = %q, want the previous stored-refresh carried over", cred.RefreshToken)
	}
}

func TestEnsureValidNotRegistered(t *testing.T) {
	ts := newTokenServer(t)
	a, _ := newTestAuthenticator(t, ts, nil)

	_, err := a.EnsureValid(context.Background(), "withings")
	if !errors.Is(err, credential.ErrNotFound) {
		t.Errorf("EnsureValid() error = %v, want ErrNotFound", err)
	}
}

func TestEnsureValidRefreshRejected(t *testing.T) {
	ts := newTokenServer(t)
	ts.mu.Lock()
	ts.rejectStatus = http.StatusBadRequest
	ts.mu.Unlock()

	a, store := newTestAuthenticator(t, ts, nil)
	seedCredential(t, store, time.Now().Add(-time.Minute))

	_, err := a.EnsureValid(context.Background(), "withings")

	var expired *AuthExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("EnsureValid() error = %v, want AuthExpiredError", err)
	}
	if expired.Provider != "withings" {
		t.Errorf("AuthExpiredError.Provider = %q, want withings", expired.Provider)
	}
}

func TestEnsureValidMissingRefreshToken(t *testing.T) {
	ts := newTokenServer(t)
	a, store := newTestAuthenticator(t, ts, nil)

	err := store.Save(context.Background(), &credential.Credential{
		ProviderID:  "withings",
		AccessToken: "stale",
		Expiry:      time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err = a.EnsureValid(context.Background(), "withings")
	var expired *AuthExpiredError
	if !errors.As(err, &expired) {
		t.Errorf("EnsureValid() error = %v, want AuthExpiredError when refresh token is missing", err)
	}
	if ts.refreshCalls.Load() != 0 {
		t.Errorf("refresh attempted without a refresh token")
	}
}

func TestEnsureValidConcurrentSingleRefresh(t *testing.T) {
	ts := newTokenServer(t)
	a, store := newTestAuthenticator(t, ts, nil)
	seedCredential(t, store, time.Now().Add(-time.Minute))

	const workers = 8
	var wg sync.WaitGroup
	creds := make([]*credential.Credential, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creds[i], errs[i] = a.EnsureValid(context.Background(), "withings")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: EnsureValid() failed: %v", i, errs[i])
		}
	}

	if got := ts.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want exactly 1 under concurrency", got)
	}

	// Every caller must observe the same refreshed token, and the store
	// must hold it too
	for i := 0; i < workers; i++ {
		if creds[i].AccessToken != "access-1" {
			t.Errorf("worker %d got access token %q, want access-1", i, creds[i].AccessToken)
		}
	}
	stored, err := store.Load(context.Background(), "withings")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if stored.AccessToken != "access-1" {
		t.Errorf("persisted access token = %q, want access-1", stored.AccessToken)
	}
}

func TestEnsureValidUnknownProvider(t *testing.T) {
	ts := newTokenServer(t)
	a, _ := newTestAuthenticator(t, ts, nil)

	if _, err := a.EnsureValid(context.Background(), "garmin"); err == nil {
		t.Errorf("EnsureValid() accepted unconfigured provider")
	}
}
