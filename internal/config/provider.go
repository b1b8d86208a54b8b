package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/VedalAI/swarm-control-sub000/internal/domain"
)

// Snapshot is one immutable version of the redeem catalog. Fetching and
// versioning of the remote document are an external collaborator's job;
// this package only holds the current snapshot.
type Snapshot struct {
	Version int                      `json:"version"`
	Redeems map[string]domain.Redeem `json:"redeems"`
	Enums   map[string][]string      `json:"enums"`
}

// Provider yields the current config snapshot.
type Provider interface {
	Current() Snapshot
}

// Static serves a snapshot that can be swapped atomically. Used directly in
// tests and behind the file loader in main.
type Static struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStatic(snap Snapshot) *Static {
	return &Static{snap: snap}
}

func (s *Static) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Static) Replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// LoadFile reads a catalog snapshot from a JSON document on disk.
func LoadFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if snap.Redeems == nil {
		snap.Redeems = map[string]domain.Redeem{}
	}
	if snap.Enums == nil {
		snap.Enums = map[string][]string{}
	}
	return NewStatic(snap), nil
}
