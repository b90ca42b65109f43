package drive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
)

var errMissingAuthorizationCode = errors.New("drive: authorization code is required")

// OAuthHelper walks staff through the consent flow that yields the service refresh token.
type OAuthHelper struct {
	config *oauth2.Config
}

// NewOAuthConfig returns the OAuth2 client configuration with full Drive scope.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{drivev3.DriveScope},
		Endpoint:     google.Endpoint,
	}
}

// NewOAuthHelper wraps an OAuth2 configuration.
func NewOAuthHelper(config *oauth2.Config) *OAuthHelper {
	return &OAuthHelper{config: config}
}

// ConsentURL returns the Google consent page URL requesting offline access.
func (h *OAuthHelper) ConsentURL(state string) string {
	return h.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for tokens.
func (h *OAuthHelper) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errMissingAuthorizationCode
	}
	token, err := h.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}
