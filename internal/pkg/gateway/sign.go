package gateway

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Sign returns the HS256 JWT the gateway expects in the "sign" field.
func (c *Client) Sign(claims map[string]interface{}) (string, error) {
	secret := strings.TrimSpace(c.PGSecret)
	if secret == "" {
		return "", errors.New("gateway PG secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	return token.SignedString([]byte(secret))
}

// VerifySign parses a signature produced with the same secret and returns its claims.
func VerifySign(sign, secret string) (map[string]interface{}, error) {
	token, err := jwt.Parse(sign, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid signature")
	}
	return claims, nil
}
