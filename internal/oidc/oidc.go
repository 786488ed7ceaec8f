package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

// IDToken is a minimal interface for token payloads that allows extracting claims
// It is satisfied by *oidc.IDToken and by test fakes.
type IDToken interface {
	Claims(v interface{}) error
}

// Verifier checks bearer tokens issued by an external Keycloak realm.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// IssuerURL returns the realm issuer, or "" when Keycloak is not configured.
func IssuerURL(cfg config.KeycloakConfig) string {
	if cfg.URL == "" || cfg.Realm == "" {
		return ""
	}
	return strings.TrimRight(cfg.URL, "/") + "/realms/" + cfg.Realm
}

// NewVerifier creates a new OIDC verifier for the given issuer and client ID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// FromConfig returns a verifier for the configured realm, or nil when none is configured.
func FromConfig(ctx context.Context, cfg config.KeycloakConfig) (*Verifier, error) {
	issuer := IssuerURL(cfg)
	if issuer == "" {
		return nil, nil
	}
	return NewVerifier(ctx, issuer, cfg.ClientID)
}

// Verify verifies the raw token and exposes its claims in the local token shape.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &realmToken{src: idToken}, nil
}

// realmToken maps Keycloak claim names onto the ones locally issued tokens carry.
type realmToken struct {
	src IDToken
}

func (t *realmToken) Claims(v interface{}) error {
	var claims map[string]interface{}
	if err := t.src.Claims(&claims); err != nil {
		return err
	}
	b, err := json.Marshal(Normalize(claims))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Normalize fills name and auth_time from their Keycloak equivalents.
func Normalize(claims map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(claims)+2)
	for k, v := range claims {
		out[k] = v
	}
	if _, ok := out["name"]; !ok {
		if u, ok := out["preferred_username"]; ok {
			out["name"] = u
		}
	}
	if _, ok := out["auth_time"]; !ok {
		if iat, ok := out["iat"]; ok {
			out["auth_time"] = iat
		}
	}
	return out
}
