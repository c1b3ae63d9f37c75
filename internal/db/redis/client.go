package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragpack/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// FT.HYBRID first shipped in Redis 8.4.
const (
	hybridMajor = 8
	hybridMinor = 4
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs      []string
	Username   string
	Password   string
	DB         int
	ClientName string
}

// Store implements db.Store via rueidis.
type Store struct {
	client rueidis.Client

	// hybrid caches the FT.HYBRID capability once INFO has answered.
	mu          sync.Mutex
	hybridKnown bool
	hybrid      bool
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   cfg.ClientName,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.HYBRID result parsing expects RESP2 flat key/value arrays
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping with doubling backoff (capped at 2s) until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := 100 * time.Millisecond
	var lastErr error
	for {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w (last error: %w)", ctx.Err(), lastErr)
		case <-time.After(delay):
		}
		delay = min(delay*2, 2*time.Second)
	}
}

// ServerVersion returns redis_version from INFO server.
func (s *Store) ServerVersion(ctx context.Context) (string, error) {
	info, err := s.do(ctx, s.b().Info().Section("server").Build()).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpInfo, Err: err}
	}
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "redis_version:"); ok {
			return v, nil
		}
	}
	return "", &db.Error{Op: db.OpInfo, Err: errors.New("redis_version missing from INFO server")}
}

// SupportsHybridSearch reports whether the server is new enough for FT.HYBRID.
// The answer is cached once known; when INFO fails it returns true so the search itself surfaces the error.
func (s *Store) SupportsHybridSearch(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hybridKnown {
		return s.hybrid
	}

	v, err := s.ServerVersion(ctx)
	if err != nil {
		return true
	}
	s.hybrid = versionAtLeast(v, hybridMajor, hybridMinor)
	s.hybridKnown = true
	return s.hybrid
}

// versionAtLeast compares the major.minor prefix of a dotted version.
func versionAtLeast(v string, major, minor int) bool {
	parts := strings.SplitN(v, ".", 3)
	maj, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	if maj != major {
		return maj > major
	}
	if len(parts) < 2 {
		return minor == 0
	}
	mnr, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return mnr >= minor
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
