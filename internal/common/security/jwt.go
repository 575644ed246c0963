package security

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity asserted by the external session provider.
type Claims struct {
	Email string
	Name  string
	Role  string
}

func NewTokenAuth(secret []byte) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", secret, nil)
}

// GenerateToken mints a token the way the identity provider does. Used by the
// operator CLI and tests; the API itself only verifies tokens.
func GenerateToken(ta *jwtauth.JWTAuth, c Claims, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"email": c.Email,
		"role":  c.Role,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}
	if c.Name != "" {
		claims["name"] = c.Name
	}
	_, tokenString, err := ta.Encode(claims)
	return tokenString, err
}

// ClaimsFromMap extracts identity claims. Only email is mandatory.
func ClaimsFromMap(claims jwt.MapClaims) (Claims, error) {
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return Claims{}, errors.New("email claim is missing or not a string")
	}
	c := Claims{Email: email}
	if name, ok := claims["name"].(string); ok {
		c.Name = name
	}
	if role, ok := claims["role"].(string); ok {
		c.Role = role
	}
	return c, nil
}
