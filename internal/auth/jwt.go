package auth

import (
	"crypto/rsa"
	"errors"
	"os"
	"strings"

	"github.com/fathima-sithara/dm-service/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// LocalUserID is the fiber.Ctx Locals key holding the caller's id.
const LocalUserID = "user_id"

var (
	ErrMissingToken = errors.New("missing token")
	ErrNoUserID     = errors.New("user id not found in token")
)

// JWTValidator verifies access tokens issued by the auth service and
// returns the user id they carry.
type JWTValidator struct {
	method jwt.SigningMethod
	key    interface{}
}

func NewJWTValidatorRS256(pubPath string) (*JWTValidator, error) {
	b, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return NewJWTValidatorRSA(pub), nil
}

func NewJWTValidatorRSA(pub *rsa.PublicKey) *JWTValidator {
	return &JWTValidator{method: jwt.SigningMethodRS256, key: pub}
}

func NewJWTValidatorHS256(secret string) *JWTValidator {
	return &JWTValidator{method: jwt.SigningMethodHS256, key: []byte(secret)}
}

// Validate returns the user id from the user_id claim, falling back to sub.
func (v *JWTValidator) Validate(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{v.method.Alg()}))
	if err != nil {
		return "", err
	}
	if !t.Valid {
		return "", errors.New("invalid token")
	}
	if id, ok := claims["user_id"].(string); ok && id != "" {
		return id, nil
	}
	if id, ok := claims["sub"].(string); ok && id != "" {
		return id, nil
	}
	return "", ErrNoUserID
}

// BearerToken reads "Authorization: Bearer <t>", or the token query
// parameter for clients that cannot set headers (browsers opening a
// websocket).
func BearerToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	return c.Query("token")
}

// Middleware rejects requests without a valid token and stores the user id
// in Locals under LocalUserID.
func Middleware(v *JWTValidator, log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return utils.JSONError(c, fiber.StatusUnauthorized, "unauthenticated", "missing authorization")
		}
		uid, err := v.Validate(token)
		if err != nil {
			log.Debugw("jwt rejected", "path", c.Path(), "err", err)
			return utils.JSONError(c, fiber.StatusUnauthorized, "unauthenticated", "invalid or expired token")
		}
		c.Locals(LocalUserID, uid)
		return c.Next()
	}
}

// UserID returns the id stored by Middleware.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(LocalUserID).(string)
	return uid
}
