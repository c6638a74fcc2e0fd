package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is the Persister used when no DSN is configured and in tests.
// Snapshots are deep-copied through JSON so callers cannot alias stored state.
type Memory struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return EmptySnapshot(), nil
	}
	snap := EmptySnapshot()
	if err := json.Unmarshal(m.blob, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (m *Memory) Save(_ context.Context, snap *Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blob = blob
	m.mu.Unlock()
	return nil
}
