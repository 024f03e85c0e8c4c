package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/jengzang/locator-backend-go/internal/models"
)

// SessionState is the serializable form of a Session
type SessionState struct {
	Unit   string          `json:"unit"`
	Route  []models.LatLng `json:"route"`
	Marker *models.Fix     `json:"marker,omitempty"`
	Mark   string          `json:"mark"`
}

// Snapshot captures every live session of a reconciler
type Snapshot struct {
	Sessions []SessionState `json:"sessions"`
	Mode     Mode           `json:"mode"`
	Zoom     int            `json:"zoom"`
	SavedAt  time.Time      `json:"saved_at"`
}

// SessionStore persists reconciler snapshots between watcher runs
type SessionStore interface {
	Save(ctx context.Context, snap Snapshot) error
	// Load returns ok=false when nothing was saved yet
	Load(ctx context.Context) (snap Snapshot, ok bool, err error)
}

// MemoryStore keeps the latest snapshot in process
type MemoryStore struct {
	mu   sync.Mutex
	snap *Snapshot
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return Snapshot{}, false, nil
	}
	return *m.snap, true, nil
}
