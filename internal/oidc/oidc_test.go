package oidc

import (
	"context"
	"testing"

	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken map[string]interface{}

func (s staticToken) Claims(v interface{}) error {
	*(v.(*map[string]interface{})) = s
	return nil
}

func TestIssuerURL(t *testing.T) {
	assert.Equal(t, "", IssuerURL(config.KeycloakConfig{}))
	assert.Equal(t, "http://kc:8080/realms/school",
		IssuerURL(config.KeycloakConfig{URL: "http://kc:8080/", Realm: "school"}))
}

func TestFromConfigDisabled(t *testing.T) {
	v, err := FromConfig(context.Background(), config.KeycloakConfig{})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRealmTokenClaims(t *testing.T) {
	tok := &realmToken{src: staticToken{"sub": "kc-1", "preferred_username": "jdoe", "iat": float64(1700000000)}}
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.Equal(t, "kc-1", claims["sub"])
	assert.Equal(t, "jdoe", claims["name"])
	assert.Equal(t, float64(1700000000), claims["auth_time"])

	kept := Normalize(map[string]interface{}{"name": "Jane", "preferred_username": "jdoe", "auth_time": 5.0})
	assert.Equal(t, "Jane", kept["name"])
	assert.Equal(t, 5.0, kept["auth_time"])
}
