package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
	"golang.org/x/oauth2"
)

// Client talks to the identity provider's OAuth2 endpoints
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	config     *common.AuthConfig
	logger     arbor.ILogger
}

var _ interfaces.IdentityProvider = (*Client)(nil)

// NewClient creates an identity provider client from the auth configuration
func NewClient(config *common.AuthConfig, logger arbor.ILogger) *Client {
	return NewClientWithHTTP(config, &http.Client{Timeout: common.ParseDuration(config.RequestTimeout, 10*time.Second)}, logger)
}

// NewClientWithHTTP creates an identity provider client that uses the given HTTP client
func NewClientWithHTTP(config *common.AuthConfig, httpClient *http.Client, logger arbor.ILogger) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthURL,
				TokenURL: config.TokenURL,
			},
			RedirectURL: config.RedirectURI,
			Scopes:      config.Scopes,
		},
		httpClient: httpClient,
		config:     config,
		logger:     logger,
	}
}

// ExchangeCode trades an authorization code for tokens
func (c *Client) ExchangeCode(ctx context.Context, code string) (*interfaces.TokenSet, error) {
	if strings.TrimSpace(code) == "" {
		return nil, interfaces.ErrInvalidCode
	}
	if c.oauth.Endpoint.TokenURL == "" {
		return nil, fmt.Errorf("%w: token_url is not configured", interfaces.ErrInvalidCode)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Authorization code exchange failed")
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidCode, err)
	}

	idToken, _ := token.Extra("id_token").(string)

	return &interfaces.TokenSet{
		AccessToken:  token.AccessToken,
		IDToken:      idToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}, nil
}

// UserInfo fetches the signed-in user's attributes from the userinfo endpoint
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*interfaces.UserInfo, error) {
	if c.config.UserInfoURL == "" {
		return nil, fmt.Errorf("%w: userinfo_url is not configured", interfaces.ErrUserInfo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUserInfo, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUserInfo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Userinfo request rejected")
		return nil, fmt.Errorf("%w: status %d", interfaces.ErrUserInfo, resp.StatusCode)
	}

	var info interfaces.UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUserInfo, err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: missing subject", interfaces.ErrUserInfo)
	}

	return &info, nil
}

// Revoke asks the identity provider to revoke a token (RFC 7009). A missing revoke_url is a no-op.
func (c *Client) Revoke(ctx context.Context, token string) error {
	if c.config.RevokeURL == "" {
		c.logger.Debug().Msg("No revoke_url configured; skipping remote revocation")
		return nil
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")
	if c.config.ClientSecret == "" {
		form.Set("client_id", c.config.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrRevokeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.config.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(c.config.ClientID), url.QueryEscape(c.config.ClientSecret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrRevokeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", interfaces.ErrRevokeFailed, resp.StatusCode)
	}
	return nil
}
