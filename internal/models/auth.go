package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the identity handed to us by the calling environment.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Can reports whether the caller's role grants the capability.
func (c *JWTClaims) Can(capability Capability) bool {
	if c == nil {
		return false
	}
	return CapabilitiesFor(c.Role).Has(capability)
}

// Owns reports whether the caller authored a resource.
func (c *JWTClaims) Owns(authorID string) bool {
	return c != nil && c.UserID != "" && c.UserID == authorID
}
