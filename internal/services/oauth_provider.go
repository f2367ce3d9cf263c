package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/memora/backend/internal/config"
	"github.com/memora/backend/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CodeVerifier signs a user in from an OAuth authorization code rather than
// an ID token the browser already holds.
type CodeVerifier interface {
	VerifyCode(ctx context.Context, code string) (*Identity, error)
}

// GoogleCodeExchanger redeems authorization codes at Google's token endpoint
// and verifies the returned ID token.
type GoogleCodeExchanger struct {
	oauth    *oauth2.Config
	verifier IdentityVerifier
}

// NewGoogleCodeExchanger returns nil when no client secret is configured.
func NewGoogleCodeExchanger(cfg config.GoogleConfig, verifier IdentityVerifier) *GoogleCodeExchanger {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || verifier == nil {
		return nil
	}
	return &GoogleCodeExchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		verifier: verifier,
	}
}

func (g *GoogleCodeExchanger) VerifyCode(ctx context.Context, code string) (*Identity, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		logger.Error("oauth_code_exchange_failed", err, map[string]interface{}{
			"provider": "google",
		})
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response has no id_token")
	}
	return g.verifier.Verify(ctx, rawIDToken)
}
