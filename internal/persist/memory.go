package persist

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tilerealm/server/internal/world"
)

// Memory is a Store kept in process memory. Used by tests and the
// "memory" database driver.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]Account
	players  map[string]world.Snapshot
	saves    int
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]Account),
		players:  make(map[string]world.Snapshot),
	}
}

func (m *Memory) LoadAccount(_ context.Context, name string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[AccountKey(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return &acc, nil
}

func (m *Memory) CreateAccount(_ context.Context, name, rawPassword, ip string) (*Account, error) {
	hash, err := hashPassword(rawPassword, bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	key := AccountKey(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[key]; ok {
		return nil, ErrAccountExists
	}
	now := time.Now()
	acc := Account{Name: key, PasswordHash: hash, IP: ip, CreatedAt: now, LastActive: &now}
	m.accounts[key] = acc
	return &acc, nil
}

func (m *Memory) TouchAccount(_ context.Context, name, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := AccountKey(name)
	acc, ok := m.accounts[key]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	acc.IP, acc.LastActive = ip, &now
	m.accounts[key] = acc
	return nil
}

// SetAccount overwrites an account, for admin tooling and tests.
func (m *Memory) SetAccount(acc Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc.Name = AccountKey(acc.Name)
	m.accounts[acc.Name] = acc
}

func (m *Memory) LoadPlayer(_ context.Context, username string) (*world.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.players[AccountKey(username)]
	if !ok {
		return nil, ErrNotFound
	}
	snap.Inventory = append([]world.Slot(nil), snap.Inventory...)
	snap.Doors = append([]string(nil), snap.Doors...)
	return &snap, nil
}

func (m *Memory) SavePlayer(ctx context.Context, snap world.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Inventory = append([]world.Slot(nil), snap.Inventory...)
	m.players[AccountKey(snap.Username)] = snap
	m.saves++
	return nil
}

// Saves counts successful SavePlayer calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() {}
