// Package auth issues and verifies bearer tokens for the deployment API.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the elevated role required for user management.
const RoleAdmin = "admin"

// Issuer is stamped into every token.
const Issuer = "deployd"

// Claims is the verified identity of a caller.
type Claims struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Username string `json:"usr"`
	Role     string `json:"role"`
}

// Manager signs and validates HS256 tokens.
type Manager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewManager creates a token manager. An empty secret is replaced by a random
// one, which means tokens do not survive a restart.
func NewManager(secret string, expiry time.Duration) (*Manager, bool, error) {
	generated := false
	if secret == "" {
		s, err := generateSecret(32)
		if err != nil {
			return nil, false, fmt.Errorf("generate token secret: %w", err)
		}
		secret = s
		generated = true
	}
	if expiry <= 0 {
		expiry = 8 * time.Hour
	}
	return &Manager{secret: []byte(secret), expiry: expiry, now: time.Now}, generated, nil
}

// Issue creates a signed token for the given user.
func (m *Manager) Issue(username, role string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.expiry)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
		Role:     role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token and returns its claims.
func (m *Manager) Verify(raw string) (*Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}

	out := &Claims{Username: claims.Username, Role: claims.Role}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Token verification errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
