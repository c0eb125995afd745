package persistence

import (
	"context"
	"encoding/json"

	"github.com/benmeehan/location-tracker/internal/store"
)

// Codec reads and writes complete snapshots of the store.
//
// Load yields an empty store when the snapshot is absent or cannot be parsed. A snapshot that
// exists but cannot be read is reported as an error wrapping store.ErrPersistence, so that the
// next commit does not overwrite it. Save rewrites the whole snapshot and wraps any failure in
// store.ErrPersistence; the caller must treat the mutation as uncommitted.
type Codec interface {
	Name() string
	Init(ctx context.Context) error
	Load(ctx context.Context) (*store.Store, error)
	Save(ctx context.Context, s *store.Store) error
}

// Snapshot load outcomes, used as metric labels.
const (
	outcomeOK      = "ok"
	outcomeMissing = "missing"
	outcomeCorrupt = "corrupt"
	outcomeError   = "error"
)

func encodeSnapshot(s *store.Store) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func decodeSnapshot(data []byte) (*store.Store, error) {
	var s store.Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.Normalize()
	return &s, nil
}
