// Package service contains application services for authentication and
// sales aggregations.
package service

import (
	"context"
	"strings"
	"sync"

	"github.com/salesline/salesline/internal/crypto"
	"github.com/salesline/salesline/internal/errs"
	"github.com/salesline/salesline/internal/limiter"
	"github.com/salesline/salesline/internal/model"
)

// AuthService keeps the username -> hashed-password mapping.
// Many concurrent reads, exclusive writes.
type AuthService struct {
	mu    sync.RWMutex
	users map[string]model.User
	lim   limiter.Limiter
}

// NewAuthService constructs an empty auth store with the given login limiter.
func NewAuthService(lim limiter.Limiter) *AuthService {
	return &AuthService{users: make(map[string]model.User), lim: lim}
}

// Register creates a new user. The username is trimmed; empty usernames or
// passwords are rejected, duplicates fail with ErrUserExists.
func (s *AuthService) Register(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errs.ErrInvalidParams
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return errs.ErrUserExists
	}
	s.users[username] = model.User{
		Username:     username,
		PasswordHash: crypto.HashPassword(password),
	}
	return nil
}

// RegisterPrehashed installs a user whose hash was loaded from disk.
// Used on recovery; duplicates fail with ErrUserExists.
func (s *AuthService) RegisterPrehashed(u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Username]; exists {
		return errs.ErrUserExists
	}
	s.users[u.Username] = u
	return nil
}

// Authenticate verifies credentials, applying the login rate limiter keyed
// by (username, peer ip). Bad credentials and unknown users are both
// ErrUnauthorized; a tripped limiter is ErrRateLimited.
func (s *AuthService) Authenticate(ctx context.Context, username, password, ip string) (model.User, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.User{}, err
	}
	if !allowed {
		return model.User{}, errs.ErrRateLimited
	}

	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()

	if !ok || !crypto.VerifyPassword(password, u.PasswordHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.User{}, errs.ErrRateLimited
		}
		return model.User{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, username, ipHash)
	return u, nil
}

// Users returns a snapshot of all registered users. Used on save.
func (s *AuthService) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	return all
}

// UserCount returns the number of registered users.
func (s *AuthService) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
