package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/observability"
	"github.com/benmeehan/location-tracker/internal/store"
	"github.com/benmeehan/location-tracker/pkg/file"
	"github.com/rs/zerolog"
)

// FileCodec keeps the snapshot in a single JSON file.
type FileCodec struct {
	path       string
	fileClient file.FileOperations
	logger     zerolog.Logger
	now        func() time.Time
}

// NewFileCodec creates a FileCodec for the snapshot at path.
func NewFileCodec(path string, fileClient file.FileOperations, logger zerolog.Logger) *FileCodec {
	return &FileCodec{
		path:       path,
		fileClient: fileClient,
		logger:     logger.With().Str("component", "file_codec").Str("path", path).Logger(),
		now:        time.Now,
	}
}

// Name returns the backend name.
func (c *FileCodec) Name() string {
	return constants.StorageBackendFile
}

// Init creates the data directory and an empty snapshot if none exists.
func (c *FileCodec) Init(ctx context.Context) error {
	if err := c.fileClient.EnsureDir(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("%w: create data directory: %v", store.ErrPersistence, err)
	}

	exists, err := c.fileClient.IsFileExists(c.path)
	if err != nil {
		return fmt.Errorf("%w: stat snapshot: %v", store.ErrPersistence, err)
	}
	if exists {
		return nil
	}

	c.logger.Info().Msg("Snapshot not found, creating empty snapshot")
	return c.Save(ctx, store.New())
}

// Load reads the snapshot. A corrupt file is moved aside so that the next commit does not
// overwrite the only copy of its bytes.
func (c *FileCodec) Load(_ context.Context) (*store.Store, error) {
	exists, err := c.fileClient.IsFileExists(c.path)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to stat snapshot")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeError).Inc()
		return nil, fmt.Errorf("%w: stat snapshot: %v", store.ErrPersistence, err)
	}
	if !exists {
		c.logger.Warn().Msg("Snapshot does not exist, starting with an empty store")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeMissing).Inc()
		return store.New(), nil
	}

	data, err := c.fileClient.ReadFileRaw(c.path)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to read snapshot")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeError).Inc()
		return nil, fmt.Errorf("%w: read snapshot: %v", store.ErrPersistence, err)
	}

	s, err := decodeSnapshot(data)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to parse snapshot, starting with an empty store")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeCorrupt).Inc()
		c.quarantine()
		return store.New(), nil
	}

	c.logger.Info().Int("devices", s.Len()).Msg("Snapshot loaded")
	observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeOK).Inc()
	return s, nil
}

// Save atomically replaces the snapshot file.
func (c *FileCodec) Save(ctx context.Context, s *store.Store) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	if err := c.fileClient.WriteJsonFile(c.path, s); err != nil {
		c.logger.Error().Err(err).Msg("Failed to write snapshot")
		return fmt.Errorf("%w: write snapshot: %v", store.ErrPersistence, err)
	}
	return nil
}

func (c *FileCodec) quarantine() {
	target := fmt.Sprintf("%s.corrupt-%d", c.path, c.now().Unix())
	if err := c.fileClient.RenameFile(c.path, target); err != nil {
		c.logger.Error().Err(err).Msg("Failed to move corrupt snapshot aside")
		return
	}
	c.logger.Warn().Str("moved_to", target).Msg("Corrupt snapshot moved aside")
}
