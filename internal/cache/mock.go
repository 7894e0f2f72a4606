package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockClient is an in-memory stand-in for RedisClient used in tests.
type MockClient struct {
	mu      sync.RWMutex
	data    map[string][]byte
	counts  map[string]int64
	sets    map[string]map[string]bool
	expiry  map[string]time.Time
	pubs    map[string][][]byte
	closed  bool

	// Err, when set, is returned by every operation.
	Err error
}

// NewMockClient creates a mock cache client.
func NewMockClient() *MockClient {
	return &MockClient{
		data:   make(map[string][]byte),
		counts: make(map[string]int64),
		sets:   make(map[string]map[string]bool),
		expiry: make(map[string]time.Time),
		pubs:   make(map[string][][]byte),
	}
}

func (m *MockClient) fail() error {
	if m.closed {
		return errors.New("client closed")
	}
	return m.Err
}

// Get retrieves a value. A missing or expired key returns (nil, nil).
func (m *MockClient) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail(); err != nil {
		return nil, err
	}
	if exp, ok := m.expiry[key]; ok && time.Now().After(exp) {
		return nil, nil
	}
	return m.data[key], nil
}

// Set stores a value with TTL.
func (m *MockClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(); err != nil {
		return err
	}
	m.data[key] = value
	if ttl > 0 {
		m.expiry[key] = time.Now().Add(ttl)
	}
	return nil
}

// Delete removes keys.
func (m *MockClient) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(); err != nil {
		return err
	}
	for _, key := range keys {
		delete(m.data, key)
		delete(m.counts, key)
		delete(m.sets, key)
		delete(m.expiry, key)
	}
	return nil
}

// IncrementWithExpiry increments a counter and refreshes its expiry.
func (m *MockClient) IncrementWithExpiry(ctx context.Context, key string, ttlSeconds int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(); err != nil {
		return 0, err
	}
	if exp, ok := m.expiry[key]; ok && time.Now().After(exp) {
		m.counts[key] = 0
	}
	m.counts[key]++
	m.expiry[key] = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	return m.counts[key], nil
}

// SetContains checks set membership.
func (m *MockClient) SetContains(ctx context.Context, setKey string, member string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail(); err != nil {
		return false, err
	}
	return m.sets[setKey][member], nil
}

// SetAdd adds members to a set.
func (m *MockClient) SetAdd(ctx context.Context, setKey string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(); err != nil {
		return err
	}
	if m.sets[setKey] == nil {
		m.sets[setKey] = make(map[string]bool)
	}
	for _, member := range members {
		m.sets[setKey][member] = true
	}
	return nil
}

// SetRemove removes members from a set.
func (m *MockClient) SetRemove(ctx context.Context, setKey string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(); err != nil {
		return err
	}
	for _, member := range members {
		delete(m.sets[setKey], member)
	}
	return nil
}

// Exists checks if a key exists.
func (m *MockClient) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail(); err != nil {
		return false, err
	}
	if exp, ok := m.expiry[key]; ok && time.Now().After(exp) {
		return false, nil
	}
	_, ok := m.data[key]
	return ok, nil
}

// Publish records a payload for the channel.
func (m *MockClient) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(); err != nil {
		return err
	}
	m.pubs[channel] = append(m.pubs[channel], payload)
	return nil
}

// Published returns the payloads published on a channel.
func (m *MockClient) Published(channel string) [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pubs[channel]
}

// Close marks the client as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
