package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"activity-storefront/internal/models"
)

// ErrNotFound is returned by a Storage when no cart is stored under the key.
var ErrNotFound = errors.New("cart not found in storage")

// Storage is the durable key-value resource a cart is persisted to.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

const envelopeVersion = 1

// envelope is the serialized form of a cart.
type envelope struct {
	Version        int                       `json:"version"`
	Items          []models.EnhancedCartItem `json:"items"`
	LastOrderID    string                    `json:"last_order_id,omitempty"`
	PendingOrderID string                    `json:"pending_order_id,omitempty"`
	SavedAt        time.Time                 `json:"saved_at"`
}

func encode(env envelope) ([]byte, error) {
	if env.Items == nil {
		env.Items = []models.EnhancedCartItem{}
	}
	env.Version = envelopeVersion
	return json.Marshal(env)
}

func decode(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported cart version %d", env.Version)
	}
	for i := range env.Items {
		item := &env.Items[i]
		if item.ID == "" || item.Quantity < 1 {
			return nil, fmt.Errorf("malformed cart item at index %d", i)
		}
	}
	return &env, nil
}

// MemoryStorage keeps carts in process memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}
