package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salesline/salesline/internal/crypto"
	"github.com/salesline/salesline/internal/errs"
	"github.com/salesline/salesline/internal/limiter"
	"github.com/salesline/salesline/internal/model"
)

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, nil
}

func okLimiter() *fakeLimiter { return &fakeLimiter{allowOK: true} }

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	s := NewAuthService(okLimiter())

	if err := s.Register("", "pw"); !errors.Is(err, errs.ErrInvalidParams) {
		t.Fatalf("empty username: got %v, want ErrInvalidParams", err)
	}
	if err := s.Register("   ", "pw"); !errors.Is(err, errs.ErrInvalidParams) {
		t.Fatalf("blank username: got %v, want ErrInvalidParams", err)
	}
	if err := s.Register("alice", ""); !errors.Is(err, errs.ErrInvalidParams) {
		t.Fatalf("empty password: got %v, want ErrInvalidParams", err)
	}

	if err := s.Register("alice", "secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("alice", "other"); !errors.Is(err, errs.ErrUserExists) {
		t.Fatalf("duplicate: got %v, want ErrUserExists", err)
	}
	if got := s.UserCount(); got != 1 {
		t.Fatalf("UserCount = %d, want 1", got)
	}
}

func TestAuth_Register_TrimsUsername(t *testing.T) {
	t.Parallel()
	s := NewAuthService(okLimiter())

	if err := s.Register("  alice  ", "secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := s.Authenticate(context.Background(), "alice", "secret", "1.2.3.4"); err != nil {
		t.Fatalf("Authenticate trimmed name: %v", err)
	}
}

func TestAuth_Authenticate(t *testing.T) {
	t.Parallel()
	lim := okLimiter()
	s := NewAuthService(lim)

	if err := s.Register("alice", "secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	u, err := s.Authenticate(context.Background(), "alice", "secret", "1.2.3.4")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("Username = %q", u.Username)
	}
	if lim.successCalls != 1 {
		t.Fatalf("successCalls = %d, want 1", lim.successCalls)
	}

	if _, err := s.Authenticate(context.Background(), "alice", "wrong", "1.2.3.4"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("wrong password: got %v, want ErrUnauthorized", err)
	}
	if _, err := s.Authenticate(context.Background(), "nobody", "secret", "1.2.3.4"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("unknown user: got %v, want ErrUnauthorized", err)
	}
	if lim.failureCalls != 2 {
		t.Fatalf("failureCalls = %d, want 2", lim.failureCalls)
	}
}

func TestAuth_Authenticate_RateLimited(t *testing.T) {
	t.Parallel()

	s := NewAuthService(&fakeLimiter{allowOK: false})
	if err := s.Register("alice", "secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := s.Authenticate(context.Background(), "alice", "secret", "ip"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}

	// Hitting the failure threshold reports the block immediately.
	s2 := NewAuthService(&fakeLimiter{allowOK: true, failBlocked: true})
	if err := s2.Register("alice", "secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := s2.Authenticate(context.Background(), "alice", "wrong", "ip"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
}

func TestAuth_RegisterPrehashed(t *testing.T) {
	t.Parallel()
	s := NewAuthService(okLimiter())

	u := model.User{Username: "alice", PasswordHash: crypto.HashPassword("secret")}
	if err := s.RegisterPrehashed(u); err != nil {
		t.Fatalf("RegisterPrehashed: %v", err)
	}
	if err := s.RegisterPrehashed(u); !errors.Is(err, errs.ErrUserExists) {
		t.Fatalf("duplicate prehashed: got %v, want ErrUserExists", err)
	}

	if _, err := s.Authenticate(context.Background(), "alice", "secret", "ip"); err != nil {
		t.Fatalf("Authenticate recovered user: %v", err)
	}
}

func TestAuth_UsersSnapshot(t *testing.T) {
	t.Parallel()
	s := NewAuthService(okLimiter())

	for _, name := range []string{"a", "b", "c"} {
		if err := s.Register(name, "pw"); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}
	all := s.Users()
	if len(all) != 3 {
		t.Fatalf("Users len = %d, want 3", len(all))
	}
}
