package auth

import (
	"deployd/internal/apperrors"
	"deployd/internal/testutil"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func writeUsers(t *testing.T) *UserStore {
	t.Helper()
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"users.json": `{"users":[
			{"username":"zoe","passwordHash":"` + hash + `","role":"operator"},
			{"username":"adam","passwordHash":"` + hash + `","role":"admin"}
		]}`,
	})
	return NewUserStore(filepath.Join(dir, "users.json"))
}

func TestUserStore_Authenticate(t *testing.T) {
	t.Parallel()
	store := writeUsers(t)

	u, err := store.Authenticate("adam", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if u.Role != RoleAdmin {
		t.Errorf("Expected admin role, got %s", u.Role)
	}
	if u.PasswordHash != "" {
		t.Error("Expected password hash to be stripped")
	}

	if _, err := store.Authenticate("adam", "wrong"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected unauthorized for wrong password, got %v", err)
	}
	if _, err := store.Authenticate("nobody", "s3cret"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected unauthorized for unknown user, got %v", err)
	}
}

func TestUserStore_UnknownUserDoesBcryptWork(t *testing.T) {
	t.Parallel()
	store := writeUsers(t)

	var compared [][]byte
	compare := store.compare
	store.compare = func(hash, password []byte) error {
		compared = append(compared, hash)
		return compare(hash, password)
	}

	if _, err := store.Authenticate("nobody", "s3cret"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("Expected unauthorized for unknown user, got %v", err)
	}
	if len(compared) != 1 {
		t.Fatalf("Expected one hash comparison for an unknown user, got %d", len(compared))
	}
	if cost, err := bcrypt.Cost(compared[0]); err != nil || cost != bcrypt.DefaultCost {
		t.Errorf("Expected a default-cost hash, got cost %d (%v)", cost, err)
	}

	compared = nil
	if _, err := store.Authenticate("adam", "wrong"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("Expected unauthorized for wrong password, got %v", err)
	}
	if len(compared) != 1 {
		t.Errorf("Expected one hash comparison for a wrong password, got %d", len(compared))
	}
}

func TestUserStore_List(t *testing.T) {
	t.Parallel()
	store := writeUsers(t)

	users, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].Username != "adam" || users[1].Username != "zoe" {
		t.Errorf("Expected sorted users, got %v", users)
	}
	for _, u := range users {
		if u.PasswordHash != "" {
			t.Errorf("Expected no hash for %s", u.Username)
		}
	}
}

func TestUserStore_MissingFile(t *testing.T) {
	t.Parallel()
	store := NewUserStore(filepath.Join(t.TempDir(), "absent.json"))

	users, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("Expected no users, got %d", len(users))
	}
	if _, err := store.Authenticate("adam", "x"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected unauthorized, got %v", err)
	}
}

func TestLoginLimiter(t *testing.T) {
	t.Parallel()

	l := NewLoginLimiter(time.Minute, 2)
	now := time.Now()
	l.now = func() time.Time { return now }

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("Expected burst of 2 to be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Error("Expected third attempt to be limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("Expected other client to be allowed")
	}

	now = now.Add(time.Minute)
	if !l.Allow("10.0.0.1") {
		t.Error("Expected attempt after interval to be allowed")
	}
}
