package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrEmptyCredentials   = errors.New("username and password are required")
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, encodedHash string) bool
}

// BcryptHasher hashes with bcrypt at Cost, or bcrypt.DefaultCost when zero.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) HashPassword(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (BcryptHasher) VerifyPassword(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}

// User is an account of the HR application.
type User struct {
	ID          string
	Username    string
	DisplayName string
	CreatedAt   time.Time

	passwordHash string
}

// UserService stores accounts in memory and verifies logins.
type UserService struct {
	mu     sync.RWMutex
	users  map[string]*User
	hasher PasswordHasher
	clock  Clock
}

// NewUserService creates an empty user service. A nil hasher selects
// BcryptHasher.
func NewUserService(hasher PasswordHasher) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &UserService{
		users:  make(map[string]*User),
		hasher: hasher,
		clock:  RealClock{},
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Register creates an account. Usernames are case-sensitive.
func (s *UserService) Register(ctx context.Context, username, displayName, password string) (*User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrEmptyCredentials
	}
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return nil, ErrAccountExists
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  displayName,
		CreatedAt:    s.clock.Now(),
		passwordHash: hash,
	}
	s.users[username] = u
	return u, nil
}

// VerifyLogin checks username/password. Unknown users and wrong passwords
// both return ErrInvalidCredentials.
func (s *UserService) VerifyLogin(ctx context.Context, username, password string) (*User, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok || !s.hasher.VerifyPassword(password, u.passwordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// FindByID returns the user with id.
func (s *UserService) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

// Usernames returns all usernames in sorted order.
func (s *UserService) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
