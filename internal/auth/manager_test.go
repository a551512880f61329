package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exponent-ml/exponent/internal/domain"
)

// fakeProvider stands in for an OAuth provider's token and user-info
// endpoints.
type fakeProvider struct {
	srv          *httptest.Server
	expectedCode string
	exchanges    int
	refreshes    int
	rejectAll    bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{expectedCode: "auth-code-42"}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, r.ParseForm())
		if f.rejectAll {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			f.exchanges++
			if r.Form.Get("code") != f.expectedCode {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "token-1",
				"refresh_token": "refresh-1",
				"token_type":    "bearer",
				"expires_in":    3600,
			})
		case "refresh_token":
			f.refreshes++
			if r.Form.Get("refresh_token") != "refresh-1" {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "token-2",
				"token_type":   "bearer",
				"expires_in":   3600,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"login": "mluser", "email": "ml@example.com"})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeProvider) config() ProviderConfig {
	return ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      f.srv.URL + "/authorize",
		TokenURL:     f.srv.URL + "/token",
		UserInfoURL:  f.srv.URL + "/userinfo",
		Scopes:       []string{"read:user"},
	}
}

// approveLogin simulates the user completing the provider consent page: it
// parses the authorization URL and hits the loopback redirect with a code.
func approveLogin(t *testing.T, code string) func(string) {
	return func(authURL string) {
		go func() {
			u, err := url.Parse(authURL)
			if err != nil {
				return
			}
			redirect := u.Query().Get("redirect_uri")
			state := u.Query().Get("state")
			resp, err := http.Get(redirect + "?code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(state))
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
}

func newTestManager(t *testing.T, provider *fakeProvider) *Manager {
	t.Helper()
	m := NewManager(NewMemoryStore(), map[domain.Provider]ProviderConfig{
		domain.ProviderGitHub: provider.config(),
	})
	m.CallbackPort = 0 // ephemeral port
	m.Timeout = 5 * time.Second
	return m
}

func TestLoginStoresCredential(t *testing.T) {
	provider := newFakeProvider(t)
	m := newTestManager(t, provider)
	m.Prompt = approveLogin(t, provider.expectedCode)

	cred, err := m.Login(context.Background(), domain.ProviderGitHub)
	require.NoError(t, err)

	assert.Equal(t, "token-1", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, "mluser", cred.UserName)
	assert.Equal(t, "ml@example.com", cred.UserEmail)
	assert.False(t, cred.Expired())
	assert.Equal(t, 1, provider.exchanges)

	status, err := m.Status()
	require.NoError(t, err)
	require.Contains(t, status, domain.ProviderGitHub)
	assert.Equal(t, "token-1", status[domain.ProviderGitHub].AccessToken)
}

func TestLoginTimesOut(t *testing.T) {
	provider := newFakeProvider(t)
	m := newTestManager(t, provider)
	m.Timeout = 50 * time.Millisecond
	m.Prompt = func(string) {} // user never completes the flow

	_, err := m.Login(context.Background(), domain.ProviderGitHub)
	require.ErrorIs(t, err, domain.ErrAuthTimeout)
	assert.Equal(t, 0, provider.exchanges)
}

func TestLoginRejectsStateMismatch(t *testing.T) {
	provider := newFakeProvider(t)
	m := newTestManager(t, provider)
	m.Prompt = func(authURL string) {
		go func() {
			u, _ := url.Parse(authURL)
			redirect := u.Query().Get("redirect_uri")
			resp, err := http.Get(redirect + "?code=stolen&state=forged")
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	_, err := m.Login(context.Background(), domain.ProviderGitHub)
	require.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Equal(t, 0, provider.exchanges)
}

func TestLoginUnconfiguredProvider(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	_, err := m.Login(context.Background(), domain.ProviderGoogle)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestTokenRefreshesExpiredCredential(t *testing.T) {
	provider := newFakeProvider(t)
	m := newTestManager(t, provider)

	store := NewMemoryStore()
	require.NoError(t, store.Save(map[domain.Provider]*domain.Credential{
		domain.ProviderGitHub: {
			Provider:     domain.ProviderGitHub,
			AccessToken:  "token-old",
			RefreshToken: "refresh-1",
			Expiry:       time.Now().Add(-time.Hour),
		},
	}))
	m.store = store

	token, err := m.Token(context.Background(), domain.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	assert.Equal(t, 1, provider.refreshes)

	// refreshed credential was persisted
	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "token-2", creds[domain.ProviderGitHub].AccessToken)
}

func TestTokenValidCredentialSkipsRefresh(t *testing.T) {
	provider := newFakeProvider(t)
	m := newTestManager(t, provider)

	require.NoError(t, m.store.Save(map[domain.Provider]*domain.Credential{
		domain.ProviderGitHub: {
			Provider:    domain.ProviderGitHub,
			AccessToken: "token-live",
			Expiry:      time.Now().Add(time.Hour),
		},
	}))

	token, err := m.Token(context.Background(), domain.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, "token-live", token)
	assert.Equal(t, 0, provider.refreshes)
}

func TestTokenExpiredWithoutRefreshToken(t *testing.T) {
	provider := newFakeProvider(t)
	m := newTestManager(t, provider)

	require.NoError(t, m.store.Save(map[domain.Provider]*domain.Credential{
		domain.ProviderGitHub: {
			Provider:    domain.ProviderGitHub,
			AccessToken: "token-old",
			Expiry:      time.Now().Add(-time.Hour),
		},
	}))

	_, err := m.Token(context.Background(), domain.ProviderGitHub)
	require.ErrorIs(t, err, domain.ErrCredentialExpired)
}

func TestTokenRefreshRejected(t *testing.T) {
	provider := newFakeProvider(t)
	provider.rejectAll = true
	m := newTestManager(t, provider)

	require.NoError(t, m.store.Save(map[domain.Provider]*domain.Credential{
		domain.ProviderGitHub: {
			Provider:     domain.ProviderGitHub,
			AccessToken:  "token-old",
			RefreshToken: "refresh-1",
			Expiry:       time.Now().Add(-time.Hour),
		},
	}))

	_, err := m.Token(context.Background(), domain.ProviderGitHub)
	require.ErrorIs(t, err, domain.ErrCredentialExpired)
}

func TestTokenNotLoggedIn(t *testing.T) {
	provider := newFakeProvider(t)
	m := newTestManager(t, provider)

	_, err := m.Token(context.Background(), domain.ProviderGitHub)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestLogoutRemovesCredential(t *testing.T) {
	provider := newFakeProvider(t)
	m := newTestManager(t, provider)

	require.NoError(t, m.store.Save(map[domain.Provider]*domain.Credential{
		domain.ProviderGitHub: {Provider: domain.ProviderGitHub, AccessToken: "token-1"},
		domain.ProviderGoogle: {Provider: domain.ProviderGoogle, AccessToken: "token-g"},
	}))

	require.NoError(t, m.Logout(domain.ProviderGitHub))

	status, err := m.Status()
	require.NoError(t, err)
	assert.NotContains(t, status, domain.ProviderGitHub)
	assert.Contains(t, status, domain.ProviderGoogle)

	// logging out twice is fine
	require.NoError(t, m.Logout(domain.ProviderGitHub))
}

func TestFileStoreRoundtrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	require.NoError(t, err)

	// missing file reads as empty, not an error
	creds, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, creds)

	want := map[domain.Provider]*domain.Credential{
		domain.ProviderGitHub: {
			Provider:    domain.ProviderGitHub,
			AccessToken: "token-1",
			UserName:    "mluser",
		},
	}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, got, domain.ProviderGitHub)
	assert.Equal(t, "token-1", got[domain.ProviderGitHub].AccessToken)
	assert.Equal(t, "mluser", got[domain.ProviderGitHub].UserName)
}

func TestFileStoreCorruptFile(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err = store.Load()
	require.Error(t, err)
}
