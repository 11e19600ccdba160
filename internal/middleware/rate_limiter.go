package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// AttemptStore counts login attempts within a rolling window.
type AttemptStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int, error)
	GetCount(ctx context.Context, key string) (int, error)
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	pipe := s.client.Pipeline()

	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return int(incr.Val()), nil
}

func (s *RedisStore) GetCount(ctx context.Context, key string) (int, error) {
	count, err := s.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

type MemoryStore struct {
	mu    sync.Mutex
	store map[string]*attemptEntry
}

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		store: make(map[string]*attemptEntry),
	}
}

func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, entry := range s.store {
		if now.After(entry.expiresAt) {
			delete(s.store, k)
		}
	}

	entry, exists := s.store[key]
	if !exists {
		entry = &attemptEntry{expiresAt: now.Add(window)}
		s.store[key] = entry
	}

	entry.count++
	return entry.count, nil
}

func (s *MemoryStore) GetCount(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.store[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

// LoginLimiter throttles login attempts per source IP and per submitted
// email, closing the brute-force window the auth flow itself does not
// guard.
type LoginLimiter struct {
	store   AttemptStore
	enabled bool
	limit   int
	window  time.Duration
}

func NewLoginLimiter(store AttemptStore, enabled bool, limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		store:   store,
		enabled: enabled,
		limit:   limit,
		window:  window,
	}
}

// Limit is the middleware applied to the login route. The email is read
// from the request body; bodies in fiber are buffered, so the handler can
// still parse it afterwards.
func (l *LoginLimiter) Limit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.enabled {
			return c.Next()
		}

		ip := c.IP()
		if ip == "" {
			ip = c.Context().RemoteIP().String()
		}

		keys := []string{fmt.Sprintf("login_attempt:ip:%s", ip)}

		var body struct {
			Email string `json:"email"`
		}
		if err := c.BodyParser(&body); err == nil && body.Email != "" {
			keys = append(keys, fmt.Sprintf("login_attempt:email:%s", body.Email))
		}

		for _, key := range keys {
			if err := l.check(c.Context(), key); err != nil {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many login attempts, try again later",
				})
			}
		}

		return c.Next()
	}
}

func (l *LoginLimiter) check(ctx context.Context, key string) error {
	count, err := l.store.GetCount(ctx, key)
	if err != nil {
		return err
	}

	if count >= l.limit {
		return fmt.Errorf("rate limit exceeded")
	}

	_, err = l.store.Increment(ctx, key, l.window)
	return err
}
