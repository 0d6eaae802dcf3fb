package auth

import (
	"deployd/internal/apperrors"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"slices"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// User is an entry of the users document.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Role         string `json:"role"`
}

type usersDocument struct {
	Users []User `json:"users"`
}

// UserStore verifies credentials against a users.json document.
// The document is re-read on every call so edits apply without a restart.
type UserStore struct {
	path    string
	mu      sync.Mutex
	compare func(hash, password []byte) error
}

// NewUserStore creates a store backed by path.
func NewUserStore(path string) *UserStore {
	return &UserStore{path: path, compare: bcrypt.CompareHashAndPassword}
}

// unknownUserHash is compared against when the username does not exist, so
// unknown users cost the same bcrypt work as wrong passwords.
var unknownUserHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("deployd-unknown-user"), bcrypt.DefaultCost)
	return hash
})

// Path returns the backing document path.
func (s *UserStore) Path() string {
	return s.path
}

func (s *UserStore) read() ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("users.read", err)
	}
	var doc usersDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Internal("users.parse", err)
	}
	return doc.Users, nil
}

// Authenticate checks username and password. Unknown users and wrong
// passwords produce the same error.
func (s *UserStore) Authenticate(username, password string) (*User, error) {
	users, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username != username {
			continue
		}
		if s.compare([]byte(u.PasswordHash), []byte(password)) != nil {
			break
		}
		return &User{Username: u.Username, Role: u.Role}, nil
	}
	if !slices.ContainsFunc(users, func(u User) bool { return u.Username == username }) {
		_ = s.compare(unknownUserHash(), []byte(password))
	}
	return nil, apperrors.Unauthorized("invalid username or password")
}

// List returns all users sorted by name, without password hashes.
func (s *UserStore) List() ([]User, error) {
	users, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(users))
	for _, u := range users {
		out = append(out, User{Username: u.Username, Role: u.Role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// HashPassword returns a bcrypt hash suitable for the users document.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
