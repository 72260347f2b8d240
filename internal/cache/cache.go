// Package cache remembers the last applied public address and decides whether a
// newly observed one is a change.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/go-logr/logr"
)

// ErrPersist is returned by Put when the new address could not be stored.
var ErrPersist = errors.New("persisting cache record")

// Store persists the single cache record.
type Store interface {
	Load(ctx context.Context) (netip.Addr, error)
	Save(ctx context.Context, addr netip.Addr) error
}

// ChangeCache holds the last applied IPv4 address. It is owned by the watcher and
// is not safe for concurrent use.
type ChangeCache struct {
	store   Store
	current netip.Addr
	log     logr.Logger
}

// New loads the persisted address from store. Loading is best-effort: a missing or
// unreadable record starts from the unspecified address.
func New(ctx context.Context, store Store, log logr.Logger) *ChangeCache {
	c := &ChangeCache{store: store, current: netip.IPv4Unspecified(), log: log}

	addr, err := store.Load(ctx)
	switch {
	case err != nil:
		log.Info("no usable cache record, starting empty", "reason", err.Error())
	case !addr.Is4():
		log.Info("ignoring cache record that is not an IPv4 address", "value", addr.String())
	default:
		c.current = addr
		log.V(1).Info("loaded cache record", "ipv4", addr)
	}
	return c
}

// Current returns the last applied address.
func (c *ChangeCache) Current() netip.Addr {
	return c.current
}

// Put reports whether addr differs from the current value. On a change the record
// is persisted before the in-memory value moves, so both stay equal after every
// successful call.
func (c *ChangeCache) Put(ctx context.Context, addr netip.Addr) (bool, error) {
	if addr == c.current {
		return false, nil
	}
	if err := c.store.Save(ctx, addr); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrPersist, addr, err)
	}
	c.current = addr
	return true, nil
}
