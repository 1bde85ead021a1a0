package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// OAuth service names. They double as keys in model.User.Services.
const (
	ServiceFacebook = "facebook"
	ServiceGoogle   = "google"
)

// identityTimeout bounds the outbound call to a provider's identity
// endpoint so a slow provider cannot hold a login request open.
const identityTimeout = 10 * time.Second

// ExternalUser is a normalized third-party identity. The provider-specific
// shapes (Facebook's "id", Google's "sub") are flattened here before the
// service layer ever sees them.
type ExternalUser struct {
	Service string // "facebook" or "google"
	ID      string // provider's stable user ID
	Email   string
	Name    string
}

// Provider exchanges a client-supplied provider access token for the
// identity it belongs to.
//
// UNLIKE THE AUTHORIZATION-CODE FLOW, the client here already holds a
// provider access token (obtained by its own SDK) and posts it to us. We
// call the provider's identity endpoint with that token to prove it is
// genuine and to learn who it identifies — we never see provider
// credentials or run a redirect dance.
type Provider interface {
	FetchUser(ctx context.Context, accessToken string) (*ExternalUser, error)
}

// FacebookProvider resolves identities against the Facebook Graph API.
type FacebookProvider struct {
	baseURL string // override in tests
}

// NewFacebookProvider creates a FacebookProvider against the real Graph API.
func NewFacebookProvider() *FacebookProvider {
	return &FacebookProvider{baseURL: "https://graph.facebook.com"}
}

// FetchUser calls GET /me with the given access token.
func (p *FacebookProvider) FetchUser(ctx context.Context, accessToken string) (*ExternalUser, error) {
	endpoint := p.baseURL + "/me?" + url.Values{"fields": {"id,name,email"}}.Encode()

	var raw struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := fetchIdentity(ctx, accessToken, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("auth: facebook identity: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("auth: facebook returned an empty user id")
	}

	return &ExternalUser{
		Service: ServiceFacebook,
		ID:      raw.ID,
		Email:   raw.Email,
		Name:    raw.Name,
	}, nil
}

// GoogleProvider resolves identities against Google's userinfo endpoint.
type GoogleProvider struct {
	baseURL string // override in tests
}

// NewGoogleProvider creates a GoogleProvider against the real endpoint.
func NewGoogleProvider() *GoogleProvider {
	return &GoogleProvider{baseURL: "https://www.googleapis.com"}
}

// FetchUser calls GET /oauth2/v3/userinfo with the given access token.
// Google names the stable user ID "sub".
func (p *GoogleProvider) FetchUser(ctx context.Context, accessToken string) (*ExternalUser, error) {
	endpoint := p.baseURL + "/oauth2/v3/userinfo"

	var raw struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := fetchIdentity(ctx, accessToken, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("auth: google identity: %w", err)
	}
	if raw.Sub == "" {
		return nil, fmt.Errorf("auth: google returned an empty subject")
	}

	return &ExternalUser{
		Service: ServiceGoogle,
		ID:      raw.Sub,
		Email:   raw.Email,
		Name:    raw.Name,
	}, nil
}

// fetchIdentity performs the authenticated GET shared by both providers.
//
// oauth2.NewClient with a StaticTokenSource gives us an *http.Client that
// attaches "Authorization: Bearer <token>" to every request — the same
// mechanism the oauth2 package uses after a code exchange, just seeded
// with the token the client handed us.
func fetchIdentity(ctx context.Context, accessToken, endpoint string, into any) error {
	ctx, cancel := context.WithTimeout(ctx, identityTimeout)
	defer cancel()

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling identity endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity endpoint returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decoding identity response: %w", err)
	}

	return nil
}
