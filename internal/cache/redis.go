package cache

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/redis/rueidis"
)

// RedisStore keeps the cache record under a single Redis key.
type RedisStore struct {
	client rueidis.Client
	key    string
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr string, db int, key string) (*RedisStore, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
		SelectDB:    db,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}
	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Load(ctx context.Context) (netip.Addr, error) {
	v, err := s.client.Do(ctx, s.client.B().Get().Key(s.key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return netip.Addr{}, fmt.Errorf("redis key %s is not set", s.key)
		}
		return netip.Addr{}, fmt.Errorf("redis GET %s: %w", s.key, err)
	}
	addr, err := netip.ParseAddr(v)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parsing redis value: %w", err)
	}
	return addr, nil
}

func (s *RedisStore) Save(ctx context.Context, addr netip.Addr) error {
	err := s.client.Do(ctx, s.client.B().Set().Key(s.key).Value(addr.String()).Build()).Error()
	if err != nil {
		return fmt.Errorf("redis SET %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() {
	s.client.Close()
}
