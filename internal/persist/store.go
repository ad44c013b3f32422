// Package persist stores accounts and player snapshots.
package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tilerealm/server/internal/world"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAccountExists  = errors.New("account already exists")
	ErrBadCredentials = errors.New("invalid username or password")
	ErrBanned         = errors.New("account banned")
)

type Account struct {
	Name         string
	PasswordHash string
	Admin        bool
	Banned       bool
	IP           string
	CreatedAt    time.Time
	LastActive   *time.Time
}

// Store is everything the server needs from persistence.
type Store interface {
	LoadAccount(ctx context.Context, name string) (*Account, error)
	CreateAccount(ctx context.Context, name, rawPassword, ip string) (*Account, error)
	TouchAccount(ctx context.Context, name, ip string) error
	LoadPlayer(ctx context.Context, username string) (*world.Snapshot, error)
	SavePlayer(ctx context.Context, snap world.Snapshot) error
	Close()
}

// AccountKey is the canonical form of an account name.
func AccountKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func hashPassword(raw string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ValidatePassword compares a raw password with a bcrypt hash.
func ValidatePassword(hash, rawPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)) == nil
}

// Authenticate verifies credentials, creating the account on first login
// when autoCreate is set. created reports a new account.
func Authenticate(ctx context.Context, s Store, name, rawPassword, ip string, autoCreate bool) (acc *Account, created bool, err error) {
	name = AccountKey(name)
	if name == "" || rawPassword == "" {
		return nil, false, ErrBadCredentials
	}
	acc, err = s.LoadAccount(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		if !autoCreate {
			return nil, false, ErrBadCredentials
		}
		acc, err = s.CreateAccount(ctx, name, rawPassword, ip)
		if err != nil {
			return nil, false, fmt.Errorf("create account: %w", err)
		}
		return acc, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("load account: %w", err)
	}
	if acc.Banned {
		return nil, false, ErrBanned
	}
	if !ValidatePassword(acc.PasswordHash, rawPassword) {
		return nil, false, ErrBadCredentials
	}
	if err := s.TouchAccount(ctx, name, ip); err != nil {
		return nil, false, fmt.Errorf("touch account: %w", err)
	}
	return acc, false, nil
}
