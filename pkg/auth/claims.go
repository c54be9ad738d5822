// Package auth provides JWT-based authentication for audit-engine.
// It validates tokens issued by the institutional identity provider
// using JWKS endpoints.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role names carried in JWT claims.
const (
	RoleAdmin      = "upm_admin"
	RoleAuditor    = "auditor"
	RoleAuditee    = "auditee"
	RoleManagement = "management"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims structure from the identity provider.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds custom claims for institutional context.
type Claims struct {
	jwt.RegisteredClaims
	Name   string   `json:"name,omitempty"`  // Display name of the user
	Roles  []string `json:"roles,omitempty"` // User roles within the institution
	UnitID string   `json:"unit,omitempty"`  // Unit UUID for auditee accounts
}

// HasRole reports whether the claims carry the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetUserNameFromContext extracts the display name from JWT claims in the
// context, falling back to the subject when no name claim is present.
func GetUserNameFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	if claims.Name != "" {
		return claims.Name
	}
	return claims.Subject
}

// RequireUserIDFromContext extracts the user ID from context and returns an
// error if not found. Use this when user ID is required for the operation.
func RequireUserIDFromContext(ctx context.Context) (string, error) {
	userID := GetUserIDFromContext(ctx)
	if userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetUnitIDFromContext extracts the auditee's unit ID from JWT claims.
// Returns uuid.Nil if not authenticated or the claim is missing or invalid.
func GetUnitIDFromContext(ctx context.Context) uuid.UUID {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil
	}
	if claims.UnitID == "" {
		return uuid.Nil
	}
	unitID, err := uuid.Parse(claims.UnitID)
	if err != nil {
		return uuid.Nil
	}
	return unitID
}
