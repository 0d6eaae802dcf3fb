package auth

import (
	"context"
	"deployd/internal/apperrors"
	"errors"
	"strings"
)

type contextKey struct{}

// WithClaims returns a context carrying the caller's claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the caller's claims, or nil.
func FromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(contextKey{}).(*Claims)
	return c
}

// Authenticate validates an Authorization header value ("Bearer <token>").
func (m *Manager) Authenticate(header string) (*Claims, error) {
	if header == "" {
		return nil, apperrors.Unauthorized("authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, apperrors.Unauthorized("invalid authorization header format")
	}
	claims, err := m.Verify(strings.TrimSpace(token))
	if errors.Is(err, ErrTokenExpired) {
		return nil, apperrors.Unauthorized("token expired")
	}
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token")
	}
	return claims, nil
}

// RequireRole returns Forbidden unless the claims carry role.
func RequireRole(c *Claims, role string) error {
	if c == nil {
		return apperrors.Unauthorized("authentication required")
	}
	if c.Role != role {
		return apperrors.Forbidden("role " + role + " required")
	}
	return nil
}
