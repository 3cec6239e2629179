package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/gateway/httpclient"
)

var (
	ErrEmptyToken   = errors.New("token is empty")
	ErrInvalidToken = errors.New("token rejected by identity provider")
)

// OIDCAuthenticator validates bearer tokens against the issuer's userinfo
// endpoint and returns the resulting claims.
type OIDCAuthenticator struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}
	issuer = strings.TrimRight(issuer, "/")

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  issuer + "/authorize",
			TokenURL: issuer + "/token",
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCAuthenticator{
		config:      config,
		userInfoURL: issuer + "/userinfo",
		httpClient:  httpclient.New(5 * time.Second),
	}, nil
}

func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	client := a.config.Client(ctx, &oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpclient.StatusError{Code: resp.StatusCode, Body: resp.Status}
	}

	claims := make(map[string]interface{})
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, ErrInvalidToken
	}

	logger.Log.WithField("sub", claims["sub"]).Debug("Token validated")
	return claims, nil
}
