package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

// Subject is the identity a token is issued for.
type Subject struct {
	UID      string
	Email    string
	Name     string
	AuthTime time.Time
}

// GenerateAccessToken creates a signed HS256 JWT for the subject. The same
// shape serves as the identity token published to the session context.
func GenerateAccessToken(cfg *config.Config, s Subject, ttl time.Duration) (string, error) {
	now := time.Now()
	authTime := s.AuthTime
	if authTime.IsZero() {
		authTime = now
	}
	claims := jwt.MapClaims{
		"sub":       s.UID,
		"name":      s.Name,
		"email":     s.Email,
		"auth_time": authTime.Unix(),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// Parse validates signature and expiry and returns the claims.
func Parse(secret, raw string) (jwt.MapClaims, error) {
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// AuthTime returns the auth_time claim, or the zero time when absent.
func AuthTime(claims map[string]interface{}) time.Time {
	switch v := claims["auth_time"].(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return time.Unix(i, 0)
		}
	}
	return time.Time{}
}

// Expiry returns the exp claim, or the zero time when absent.
func Expiry(claims map[string]interface{}) time.Time {
	if f, ok := claims["exp"].(float64); ok {
		return time.Unix(int64(f), 0)
	}
	return time.Time{}
}

type verifiedToken struct {
	claims jwt.MapClaims
}

func (t *verifiedToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Verifier checks tokens issued by this service. It satisfies middleware.Verifier.
type Verifier struct {
	secret string
}

func NewVerifier(cfg *config.Config) *Verifier { return &Verifier{secret: cfg.JWT.Secret} }

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims, err := Parse(v.secret, raw)
	if err != nil {
		return nil, err
	}
	return &verifiedToken{claims: claims}, nil
}
