package auth

import (
	"deployd/internal/apperrors"
	"errors"
	"testing"
	"time"
)

func TestManager_IssueVerify(t *testing.T) {
	t.Parallel()

	m, generated, err := NewManager("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if generated {
		t.Error("Expected configured secret to be used")
	}

	token, expiresAt, err := m.Issue("alice", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Username != "alice" || claims.Role != RoleAdmin {
		t.Errorf("Expected alice/admin, got %s/%s", claims.Username, claims.Role)
	}
	if !claims.ExpiresAt.Equal(expiresAt.Truncate(time.Second)) {
		t.Errorf("Expected expiry %v, got %v", expiresAt, claims.ExpiresAt)
	}
	if claims.Role != RoleAdmin {
		t.Error("Expected admin claims")
	}
}

func TestManager_GeneratedSecret(t *testing.T) {
	t.Parallel()

	a, generated, err := NewManager("", 0)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if !generated {
		t.Error("Expected a generated secret")
	}
	b, _, _ := NewManager("", 0)

	token, _, err := a.Issue("bob", "operator")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := b.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestManager_Expired(t *testing.T) {
	t.Parallel()

	m, _, _ := NewManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	token, _, err := m.Issue("carol", "operator")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	m.now = time.Now

	if _, err := m.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
	_, err = m.Authenticate("Bearer " + token)
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected unauthorized, got %v", err)
	}
}

func TestManager_Authenticate(t *testing.T) {
	t.Parallel()

	m, _, _ := NewManager("secret", time.Hour)
	token, _, _ := m.Issue("dave", "operator")

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"valid", "Bearer " + token, false},
		{"lowercase scheme", "bearer " + token, false},
		{"missing", "", true},
		{"wrong scheme", "Basic " + token, true},
		{"no token", "Bearer ", true},
		{"garbage", "Bearer not-a-token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := m.Authenticate(tt.header)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrUnauthorized) {
					t.Errorf("Expected unauthorized, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if claims.Username != "dave" {
				t.Errorf("Expected dave, got %s", claims.Username)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	if err := RequireRole(nil, RoleAdmin); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected unauthorized for nil claims, got %v", err)
	}
	if err := RequireRole(&Claims{Username: "e", Role: "operator"}, RoleAdmin); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("Expected forbidden, got %v", err)
	}
	if err := RequireRole(&Claims{Username: "f", Role: RoleAdmin}, RoleAdmin); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
