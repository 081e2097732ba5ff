package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cast"

	"github.com/ManuelReschke/SchoolPay/internal/pkg/usercontext"
)

const RoleAdmin = "admin"

// AuthClaims are the claims issued by the auth service.
type AuthClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ResolvedUserID returns the user id, falling back to a numeric subject.
func (c *AuthClaims) ResolvedUserID() uint {
	if c.UserID != 0 {
		return c.UserID
	}
	return cast.ToUint(c.Subject)
}

// ParseToken verifies an HS256 token and returns its claims.
func ParseToken(tokenStr, secret string) (*AuthClaims, error) {
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	token, err := jwt.ParseWithClaims(tokenStr, &AuthClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ResolvedUserID() == 0 {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}

// JWTAuth populates the user context from a bearer token. Requests without a
// token continue anonymously; an invalid token is rejected.
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := extractBearer(c)
		if tokenStr == "" {
			usercontext.SetUserContext(c, usercontext.UserContext{})
			return c.Next()
		}

		claims, err := ParseToken(tokenStr, secret)
		if err != nil {
			log.Debugf("[Auth] rejected token: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "invalid or expired token",
			})
		}

		username := claims.Username
		if username == "" {
			username = claims.Email
		}
		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     claims.ResolvedUserID(),
			Username:   username,
			IsLoggedIn: true,
			IsAdmin:    strings.EqualFold(claims.Role, RoleAdmin),
		})
		return c.Next()
	}
}

func extractBearer(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
