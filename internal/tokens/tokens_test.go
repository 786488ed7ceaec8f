package tokens

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig(secret string) *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	return cfg
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	cfg := testConfig("test-secret-32-bytes-should-be-long-enough")
	authAt := time.Now().Add(-time.Minute).Truncate(time.Second)

	s := Subject{UID: "user-123", Name: "Test User", Email: "test@example.com", AuthTime: authAt}
	tokenStr, err := GenerateAccessToken(cfg, s, 2*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if !parsed.Valid {
		t.Fatalf("token should be valid")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("claims type assertion failed")
	}
	if claims["sub"] != s.UID {
		t.Fatalf("unexpected sub claim: got=%v want=%v", claims["sub"], s.UID)
	}
	if got := AuthTime(claims); !got.Equal(authAt) {
		t.Fatalf("unexpected auth_time: got=%v want=%v", got, authAt)
	}
}

func TestGenerateAccessToken_Expiry(t *testing.T) {
	cfg := testConfig("another-secret-32-bytes-longgggg")
	tokenStr, err := GenerateAccessToken(cfg, Subject{UID: "u2", Name: "X", Email: "x@x"}, 1*time.Second)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	time.Sleep(2 * time.Second)
	if _, err := Parse(cfg.JWT.Secret, tokenStr); err == nil {
		t.Fatalf("expected token parse to fail after expiry")
	}
}

func TestParse_WrongSecretFails(t *testing.T) {
	cfg := testConfig("secret-one-32-bytes-xxxxxxxxxxxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, Subject{UID: "u3", Name: "Bob", Email: "bob@example.com"}, 2*time.Minute)
	require.NoError(t, err)
	_, err = Parse("different-secret-xxxxxxxxxxxxxxxx", tokenStr)
	require.Error(t, err)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("x", "not.a.jwt")
	require.Error(t, err)
}

func TestParse_AlgNoneRejected(t *testing.T) {
	headerEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"alg":"none"}`))
	payloadEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"sub":"u-none","exp":9999999999}`))
	_, err := Parse("x", headerEnc+"."+payloadEnc+".")
	require.Error(t, err)
}

func TestParse_TamperedPayload(t *testing.T) {
	cfg := testConfig("tamper-test-secret-32-bytes-xxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, Subject{UID: "user-t", Name: "Tamper", Email: "t@example.com"}, 5*time.Minute)
	require.NoError(t, err)

	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payloadBytes, _ := jwt.NewParser().DecodeSegment(parts[1])
	parts[1] = (&jwt.Token{}).EncodeSegment([]byte(strings.Replace(string(payloadBytes), "user-t", "attacker", 1)))
	_, err = Parse(cfg.JWT.Secret, strings.Join(parts, "."))
	require.Error(t, err)
}

func TestVerifier(t *testing.T) {
	cfg := testConfig("verifier-secret-32-bytes-xxxxxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, Subject{UID: "u4", Email: "u4@example.com"}, time.Minute)
	require.NoError(t, err)

	v := NewVerifier(cfg)
	tok, err := v.Verify(context.Background(), tokenStr)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "u4", claims["sub"])
	require.False(t, Expiry(claims).IsZero())

	_, err = v.Verify(context.Background(), tokenStr+"x")
	require.Error(t, err)
}
