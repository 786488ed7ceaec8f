package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier accepts "goodtoken" and any token listed in extra.
type fakeVerifier struct {
	extra map[string]string
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw == "goodtoken" {
		return &fakeToken{data: map[string]interface{}{"sub": "user1", "email": "test@example.com"}}, nil
	}
	if sub, ok := f.extra[raw]; ok {
		return &fakeToken{data: map[string]interface{}{"sub": sub}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func serve(t *testing.T, mw gin.HandlerFunc, header string, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	if h == nil {
		h = func(c *gin.Context) { c.Status(http.StatusOK) }
	}
	g.GET("/", mw, h)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	rw := serve(t, AuthMiddleware(&fakeVerifier{}), "", nil)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	for _, h := range []string{"BadHeader", "Basic abc", "Bearer "} {
		rw := serve(t, AuthMiddleware(&fakeVerifier{}), h, nil)
		require.Equal(t, http.StatusUnauthorized, rw.Code, h)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	rw := serve(t, AuthMiddleware(&fakeVerifier{}), "Bearer goodtoken", func(c *gin.Context) {
		require.Equal(t, "user1", UID(c))
		require.Equal(t, "goodtoken", c.GetString(AccessTokenKey))
		resp, _ := json.Marshal(gin.H{"claims": Claims(c)})
		c.Writer.Write(resp)
	})

	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, "test@example.com", got["claims"]["email"])
}

func TestAuthMiddleware_RejectsTokenWithoutSubject(t *testing.T) {
	ver := &fakeVerifier{extra: map[string]string{"nosub": ""}}
	rw := serve(t, AuthMiddleware(ver), "Bearer nosub", nil)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAuthMiddleware_RejectsBlacklistedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	sessions.SetBlacklistClient(client)
	defer sessions.SetBlacklistClient(nil)

	require.NoError(t, sessions.BlacklistAccessToken(context.Background(), "goodtoken", 5*time.Second))

	rw := serve(t, AuthMiddleware(&fakeVerifier{}), "Bearer goodtoken", nil)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestChainVerifier(t *testing.T) {
	chain := ChainVerifier{nil, &fakeVerifier{}, &fakeVerifier{extra: map[string]string{"kc": "kc-user"}}}

	tok, err := chain.Verify(context.Background(), "kc")
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "kc-user", claims["sub"])

	_, err = chain.Verify(context.Background(), "nope")
	require.Error(t, err)

	_, err = ChainVerifier{}.Verify(context.Background(), "goodtoken")
	require.Error(t, err)
}

func TestAuthMiddleware_WebsocketQueryToken(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}), func(c *gin.Context) { c.String(http.StatusOK, UID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/?access_token=goodtoken", nil)
	req.Header.Set("Upgrade", "websocket")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "user1", rw.Body.String())

	// plain requests must use the header
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/?access_token=goodtoken", nil))
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	h := func(c *gin.Context) { c.String(http.StatusOK, "uid=%s", UID(c)) }

	rw := serve(t, OptionalAuthMiddleware(&fakeVerifier{}), "", h)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "uid=", rw.Body.String())

	rw = serve(t, OptionalAuthMiddleware(&fakeVerifier{}), "Bearer junk", h)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "uid=", rw.Body.String())

	rw = serve(t, OptionalAuthMiddleware(&fakeVerifier{}), "Bearer goodtoken", h)
	require.Equal(t, "uid=user1", rw.Body.String())
}
