package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/ruteri/invoice-financing-protocol/registry"
)

// SnapshotStore persists complete protocol states.
type SnapshotStore struct {
	backend interfaces.StorageBackend
	log     *slog.Logger
}

func NewSnapshotStore(backend interfaces.StorageBackend, log *slog.Logger) *SnapshotStore {
	return &SnapshotStore{backend: backend, log: log}
}

// Save stores state and returns its content ID.
func (s *SnapshotStore) Save(ctx context.Context, state registry.State) (interfaces.ContentID, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("could not encode snapshot: %w", err)
	}

	id, err := s.backend.Store(ctx, data, interfaces.SnapshotType)
	if err != nil {
		return id, fmt.Errorf("could not store snapshot: %w", err)
	}

	s.log.Info("Snapshot saved",
		"contentID", id.String(),
		"takenAt", state.TakenAt,
		"invoices", len(state.Invoices),
		"fundings", len(state.Fundings))
	return id, nil
}

// Load fetches a snapshot and checks it against its content ID.
func (s *SnapshotStore) Load(ctx context.Context, id interfaces.ContentID) (registry.State, error) {
	var state registry.State

	data, err := s.backend.Fetch(ctx, id, interfaces.SnapshotType)
	if err != nil {
		return state, fmt.Errorf("could not fetch snapshot %s: %w", id, err)
	}
	if actual := interfaces.ComputeID(data); actual != id {
		return state, fmt.Errorf("snapshot %s content hashes to %s", id, actual)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("could not decode snapshot %s: %w", id, err)
	}
	return state, nil
}
