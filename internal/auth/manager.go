package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/exponent-ml/exponent/internal/domain"
	"github.com/exponent-ml/exponent/internal/logger"
)

// ProviderConfig holds one OAuth provider's client credentials and
// endpoints.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// Manager runs the OAuth authorization-code flow against configured
// providers and keeps the resulting credentials in a CredentialStore.
//
// Login blocks on a loopback HTTP listener that receives the provider's
// redirect; the authorization URL the user must open is handed to Prompt.
type Manager struct {
	store     CredentialStore
	providers map[domain.Provider]ProviderConfig
	client    *resty.Client

	// CallbackPort is the fixed loopback port registered with the
	// providers. Zero picks an ephemeral port (tests).
	CallbackPort int

	// Timeout bounds how long Login waits for the redirect.
	Timeout time.Duration

	// Prompt receives the authorization URL. The default prints it to
	// stdout for the user to open.
	Prompt func(authURL string)
}

// NewManager creates an auth manager.
func NewManager(store CredentialStore, providers map[domain.Provider]ProviderConfig) *Manager {
	return &Manager{
		store:        store,
		providers:    providers,
		client:       resty.New().SetTimeout(30 * time.Second),
		CallbackPort: 8765,
		Timeout:      2 * time.Minute,
		Prompt: func(authURL string) {
			fmt.Printf("Open the following URL in your browser to sign in:\n\n  %s\n\n", authURL)
		},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

type callbackResult struct {
	code string
	err  error
}

// Login runs the authorization-code flow for provider and stores the
// resulting credential. It blocks until the redirect arrives, ctx is
// cancelled, or Timeout elapses.
func (m *Manager) Login(ctx context.Context, provider domain.Provider) (*domain.Credential, error) {
	cfg, ok := m.providers[provider]
	if !ok || cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: provider %s is not configured (set its client id and secret)", domain.ErrAuthentication, provider)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", m.CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("failed to open callback listener: %w", err)
	}
	defer listener.Close()

	redirectURI := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	state := uuid.New().String()

	results := make(chan callbackResult, 1)
	server := &http.Server{Handler: callbackHandler(state, results)}
	go server.Serve(listener) //nolint:errcheck // returns on Close
	defer server.Close()

	m.Prompt(m.authorizationURL(cfg, redirectURI, state))

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	var code string
	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthTimeout, ctx.Err())
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: no response within %s", domain.ErrAuthTimeout, timeout)
	}

	cred, err := m.exchangeCode(ctx, provider, cfg, code, redirectURI)
	if err != nil {
		return nil, err
	}

	if err := m.put(provider, cred); err != nil {
		return nil, err
	}

	logger.With(logger.Fields{logger.FieldProvider: string(provider)}).
		Info(ctx, "Signed in as %s", cred.UserName)
	return cred, nil
}

// Logout removes the stored credential for provider. Removing a provider
// that was never logged in is not an error.
func (m *Manager) Logout(provider domain.Provider) error {
	creds, err := m.store.Load()
	if err != nil {
		return err
	}
	delete(creds, provider)
	return m.store.Save(creds)
}

// Status returns all stored credentials keyed by provider.
func (m *Manager) Status() (map[domain.Provider]*domain.Credential, error) {
	return m.store.Load()
}

// Token returns a valid access token for provider, refreshing it first if
// the stored one has expired. A failed refresh surfaces
// domain.ErrCredentialExpired so the caller can tell the user to log in
// again.
func (m *Manager) Token(ctx context.Context, provider domain.Provider) (string, error) {
	creds, err := m.store.Load()
	if err != nil {
		return "", err
	}
	cred, ok := creds[provider]
	if !ok {
		return "", fmt.Errorf("%w: not logged in to %s", domain.ErrAuthentication, provider)
	}
	if !cred.Expired() {
		return cred.AccessToken, nil
	}

	refreshed, err := m.refresh(ctx, provider, cred)
	if err != nil {
		return "", err
	}
	if err := m.put(provider, refreshed); err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

func (m *Manager) put(provider domain.Provider, cred *domain.Credential) error {
	creds, err := m.store.Load()
	if err != nil {
		return err
	}
	creds[provider] = cred
	if err := m.store.Save(creds); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}

func (m *Manager) authorizationURL(cfg ProviderConfig, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	if len(cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	return cfg.AuthURL + "?" + q.Encode()
}

func (m *Manager) exchangeCode(ctx context.Context, provider domain.Provider, cfg ProviderConfig, code, redirectURI string) (*domain.Credential, error) {
	var token tokenResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(map[string]string{
			"grant_type":    "authorization_code",
			"client_id":     cfg.ClientID,
			"client_secret": cfg.ClientSecret,
			"code":          code,
			"redirect_uri":  redirectURI,
		}).
		SetResult(&token).
		Post(cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	if resp.IsError() || token.Error != "" || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token exchange rejected (%s %s)", domain.ErrAuthentication, token.Error, token.ErrorDesc)
	}

	cred := &domain.Credential{
		Provider:     provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if token.ExpiresIn > 0 {
		cred.Expiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	if cfg.UserInfoURL != "" {
		m.fillUserInfo(ctx, cfg, cred)
	}
	return cred, nil
}

// fillUserInfo is best effort: a login without a display name is still a
// login.
func (m *Manager) fillUserInfo(ctx context.Context, cfg ProviderConfig, cred *domain.Credential) {
	var info struct {
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	resp, err := m.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+cred.AccessToken).
		SetResult(&info).
		Get(cfg.UserInfoURL)
	if err != nil || resp.IsError() {
		return
	}
	switch {
	case info.Name != "":
		cred.UserName = info.Name
	case info.Login != "":
		cred.UserName = info.Login
	}
	cred.UserEmail = info.Email
}

func (m *Manager) refresh(ctx context.Context, provider domain.Provider, cred *domain.Credential) (*domain.Credential, error) {
	cfg, ok := m.providers[provider]
	if !ok || cred.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s token expired and cannot be refreshed", domain.ErrCredentialExpired, provider)
	}

	var token tokenResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"client_id":     cfg.ClientID,
			"client_secret": cfg.ClientSecret,
			"refresh_token": cred.RefreshToken,
		}).
		SetResult(&token).
		Post(cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if resp.IsError() || token.Error != "" || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s refresh rejected, log in again", domain.ErrCredentialExpired, provider)
	}

	out := *cred
	out.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		out.RefreshToken = token.RefreshToken
	}
	if token.ExpiresIn > 0 {
		out.Expiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	} else {
		out.Expiry = time.Time{}
	}
	return &out, nil
}

// callbackHandler accepts the provider redirect on /callback, validates the
// state parameter, and reports the code exactly once.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errCode := q.Get("error"); errCode != "" {
			http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
			sendResult(results, callbackResult{err: fmt.Errorf("%w: provider returned %s", domain.ErrAuthentication, errCode)})
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch. You can close this window.", http.StatusBadRequest)
			sendResult(results, callbackResult{err: fmt.Errorf("%w: state mismatch in callback", domain.ErrAuthentication)})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing code. You can close this window.", http.StatusBadRequest)
			sendResult(results, callbackResult{err: fmt.Errorf("%w: callback carried no code", domain.ErrAuthentication)})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h3>Signed in.</h3>You can close this window and return to the terminal.</body></html>")
		sendResult(results, callbackResult{code: code})
	})
	return mux
}

func sendResult(results chan<- callbackResult, res callbackResult) {
	select {
	case results <- res:
	default:
	}
}
