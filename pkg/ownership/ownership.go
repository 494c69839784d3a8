// Package ownership records which user submitted which job.
package ownership

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Store keeps the owner of each job
type Store interface {
	// Record sets userID as the owner of jobID.
	Record(ctx context.Context, jobID, userID string) error

	// Owner returns the owner of jobID, false if none is recorded.
	Owner(ctx context.Context, jobID string) (string, bool, error)

	Close() error
}

// Config is the configuration of the ownership store
type Config struct {
	// RedisURL selects the redis store when set, the in-memory one otherwise
	RedisURL string        `json:"redis_url" env:"OWNERSHIP_REDIS_URL"`
	TTL      time.Duration `json:"ttl" env:"OWNERSHIP_TTL"`
}

// DefaultConfig returns the ownership configuration used when nothing is set
func DefaultConfig() Config {
	return Config{TTL: 7 * 24 * time.Hour}
}

// New returns the store described by conf
func New(ctx context.Context, conf Config) (Store, error) {
	if conf.RedisURL == "" {
		return NewMemoryStore(), nil
	}
	s, err := NewRedisStore(ctx, conf.RedisURL, conf.TTL)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create redis ownership store")
	}
	return s, nil
}

// Allowed returns true if userID may access jobID: either it owns it or no owner is recorded.
func Allowed(ctx context.Context, s Store, jobID, userID string) (bool, error) {
	owner, ok, err := s.Owner(ctx, jobID)
	if err != nil {
		return false, err
	}
	return !ok || owner == userID, nil
}

// NewMemoryStore returns a Store keeping owners in memory
func NewMemoryStore() Store {
	return &memory{owners: map[string]string{}}
}

type memory struct {
	mu     sync.RWMutex
	owners map[string]string
}

func (m *memory) Record(ctx context.Context, jobID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[jobID] = userID
	return nil
}

func (m *memory) Owner(ctx context.Context, jobID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[jobID]
	return o, ok, nil
}

func (m *memory) Close() error {
	return nil
}
