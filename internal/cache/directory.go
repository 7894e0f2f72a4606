package cache

import (
	"context"
	"fmt"
)

const rolePrefix = "role:"

// Directory resolves a principal's stored role from the cache. The host
// application maintains role:<user_id> keys as accounts change.
type Directory struct {
	client Client
}

// NewDirectory creates a cache-backed role directory.
func NewDirectory(client Client) *Directory {
	return &Directory{client: client}
}

// Role returns the stored role for a principal, or "" when unknown.
func (d *Directory) Role(ctx context.Context, userID string) (string, error) {
	val, err := d.client.Get(ctx, rolePrefix+userID)
	if err != nil {
		return "", fmt.Errorf("role lookup %s: %w", userID, err)
	}
	return string(val), nil
}

// SetRole stores a principal's role. Used by the host app and by tests.
func (d *Directory) SetRole(ctx context.Context, userID, role string) error {
	return d.client.Set(ctx, rolePrefix+userID, []byte(role), 0)
}
