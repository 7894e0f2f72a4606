package cache

import (
	"context"
	"fmt"
	"time"
)

// Client is the cache surface shared by RedisClient and MockClient.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	IncrementWithExpiry(ctx context.Context, key string, ttlSeconds int) (int64, error)
	SetContains(ctx context.Context, setKey string, member string) (bool, error)
	SetAdd(ctx context.Context, setKey string, members ...string) error
	SetRemove(ctx context.Context, setKey string, members ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// Cache keys for mitigation state. The host app's enforcement middleware
// consults the same keys, so blocks and locks take effect immediately.
const (
	blockedAddrPrefix = "blocked:addr:"
	lockedAcctPrefix  = "locked:acct:"
	suspendedSet      = "suspended_accounts"
)

// Mitigations executes automated remediations by writing time-bounded
// state into the cache. The engine only issues these commands; actual
// enforcement happens in the host application.
type Mitigations struct {
	client Client
}

// NewMitigations creates a cache-backed mitigation executor.
func NewMitigations(client Client) *Mitigations {
	return &Mitigations{client: client}
}

// BlockAddress blocks a source address for ttlSeconds.
func (m *Mitigations) BlockAddress(ctx context.Context, addr string, ttlSeconds int) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if err := m.client.Set(ctx, blockedAddrPrefix+addr, []byte("1"), ttl); err != nil {
		return fmt.Errorf("block address %s: %w", addr, err)
	}
	return nil
}

// LockAccount locks an account for ttlSeconds.
func (m *Mitigations) LockAccount(ctx context.Context, userID string, ttlSeconds int) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if err := m.client.Set(ctx, lockedAcctPrefix+userID, []byte("1"), ttl); err != nil {
		return fmt.Errorf("lock account %s: %w", userID, err)
	}
	return nil
}

// SuspendAccount suspends an account indefinitely. Reinstatement is a
// human action that removes the member from the set.
func (m *Mitigations) SuspendAccount(ctx context.Context, userID string) error {
	if err := m.client.SetAdd(ctx, suspendedSet, userID); err != nil {
		return fmt.Errorf("suspend account %s: %w", userID, err)
	}
	return nil
}

// AddressBlocked reports whether an address is currently blocked.
func (m *Mitigations) AddressBlocked(ctx context.Context, addr string) (bool, error) {
	return m.client.Exists(ctx, blockedAddrPrefix+addr)
}

// AccountLocked reports whether an account is currently locked.
func (m *Mitigations) AccountLocked(ctx context.Context, userID string) (bool, error) {
	return m.client.Exists(ctx, lockedAcctPrefix+userID)
}

// AccountSuspended reports whether an account is suspended.
func (m *Mitigations) AccountSuspended(ctx context.Context, userID string) (bool, error) {
	return m.client.SetContains(ctx, suspendedSet, userID)
}
