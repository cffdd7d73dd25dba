package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/containerflow/pkg/enums"
)

// Outcome classifies a finished cycle for health reporting.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeSkipped  Outcome = "skipped"
)

// CycleStatus is the health record published after every cycle.
type CycleStatus struct {
	Outcome             Outcome               `json:"outcome"`
	Reason              string                `json:"reason,omitempty"`
	FulfillmentType     enums.FulfillmentType `json:"fulfillment_type"`
	ProductionLocations int                   `json:"production_locations"`
	Checked             int                   `json:"checked_count"`
	Resolved            int                   `json:"cleaned_count"`
	SoftErrors          int                   `json:"soft_error_count"`
	StartedAt           time.Time             `json:"started_at"`
	FinishedAt          time.Time             `json:"finished_at"`
	LastSuccessAt       *time.Time            `json:"last_success_at,omitempty"`
}

// StatusStore keeps the most recent CycleStatus.
type StatusStore interface {
	Save(ctx context.Context, status CycleStatus) error
	Latest(ctx context.Context) (*CycleStatus, bool, error)
}

// MemoryStatusStore keeps the status in process. Used when Redis is not configured.
type MemoryStatusStore struct {
	mu     sync.RWMutex
	latest *CycleStatus
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{}
}

func (m *MemoryStatusStore) Save(_ context.Context, status CycleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = &status
	return nil
}

func (m *MemoryStatusStore) Latest(context.Context) (*CycleStatus, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil, false, nil
	}
	status := *m.latest
	return &status, true, nil
}

type keyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RedisStatusStore shares the status between the worker and the API as a
// JSON document under a single key.
type RedisStatusStore struct {
	client keyValueStore
	key    string
}

func NewRedisStatusStore(client keyValueStore, key string) (*RedisStatusStore, error) {
	if client == nil {
		return nil, errors.New("redis client required for status store")
	}
	if key == "" {
		return nil, errors.New("status key is required")
	}
	return &RedisStatusStore{client: client, key: key}, nil
}

func (r *RedisStatusStore) Save(ctx context.Context, status CycleStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode cycle status: %w", err)
	}
	if err := r.client.Set(ctx, r.key, string(payload), 0); err != nil {
		return fmt.Errorf("store cycle status: %w", err)
	}
	return nil
}

func (r *RedisStatusStore) Latest(ctx context.Context) (*CycleStatus, bool, error) {
	raw, err := r.client.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cycle status: %w", err)
	}
	var status CycleStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, false, fmt.Errorf("decode cycle status: %w", err)
	}
	return &status, true, nil
}
