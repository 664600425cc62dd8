package models

import "github.com/golang-jwt/jwt/v5"

// Claims mirrors the subset of an OpenID Connect access token the basket API reads.
type Claims struct {
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserName is the identity baskets are keyed by.
func (c *Claims) UserName() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}
