package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func hsToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestValidateHS256(t *testing.T) {
	v := NewJWTValidatorHS256("s3cret")
	exp := time.Now().Add(time.Hour).Unix()

	uid, err := v.Validate(hsToken(t, "s3cret", jwt.MapClaims{"sub": "alice", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)

	uid, err = v.Validate(hsToken(t, "s3cret", jwt.MapClaims{"sub": "x", "user_id": "bob", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, "bob", uid)
}

func TestValidateRejects(t *testing.T) {
	v := NewJWTValidatorHS256("s3cret")

	_, err := v.Validate("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.Validate(hsToken(t, "other", jwt.MapClaims{"sub": "alice"}))
	assert.Error(t, err)

	_, err = v.Validate(hsToken(t, "s3cret", jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Minute).Unix()}))
	assert.Error(t, err)

	_, err = v.Validate(hsToken(t, "s3cret", jwt.MapClaims{"role": "admin"}))
	assert.ErrorIs(t, err, ErrNoUserID)
}

func TestValidateRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewJWTValidatorRSA(&key.PublicKey)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "carol"}).SignedString(key)
	require.NoError(t, err)
	uid, err := v.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "carol", uid)

	// an HS256 token must not pass an RS256 validator
	_, err = v.Validate(hsToken(t, "s3cret", jwt.MapClaims{"sub": "carol"}))
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v := NewJWTValidatorHS256("s3cret")
	app := fiber.New()
	app.Get("/me", Middleware(v, zaptest.NewLogger(t).Sugar()), func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})
	token := hsToken(t, "s3cret", jwt.MapClaims{"sub": "alice"})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "alice", string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/me?token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
