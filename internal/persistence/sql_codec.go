package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/observability"
	"github.com/benmeehan/location-tracker/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// snapshotRowID is the primary key of the only row in the snapshot table.
const snapshotRowID = 1

// SQLCodec keeps the snapshot in a single-row table. It supports SQLite and PostgreSQL.
type SQLCodec struct {
	db      *sql.DB
	backend string
	logger  zerolog.Logger
	now     func() time.Time

	createQuery string
	selectQuery string
	insertQuery string
	upsertQuery string
}

// OpenSQL opens and pings a database for the given storage backend.
func OpenSQL(ctx context.Context, backend, dsn string) (*sql.DB, error) {
	var driver string
	switch backend {
	case constants.StorageBackendSQLite:
		driver = "sqlite"
	case constants.StorageBackendPostgres:
		driver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported SQL backend %q", backend)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", backend, err)
	}
	if backend == constants.StorageBackendSQLite {
		// SQLite allows a single writer; the gateway serializes commits anyway.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", backend, err)
	}
	return db, nil
}

// NewSQLCodec creates a SQLCodec for an open database of the given backend.
func NewSQLCodec(db *sql.DB, backend string, logger zerolog.Logger) (*SQLCodec, error) {
	var p1, p2 string
	switch backend {
	case constants.StorageBackendSQLite:
		p1, p2 = "?", "?"
	case constants.StorageBackendPostgres:
		p1, p2 = "$1", "$2"
	default:
		return nil, fmt.Errorf("unsupported SQL backend %q", backend)
	}

	return &SQLCodec{
		db:      db,
		backend: backend,
		logger:  logger.With().Str("component", "sql_codec").Str("backend", backend).Logger(),
		now:     time.Now,

		createQuery: `CREATE TABLE IF NOT EXISTS tracker_snapshot (
			id INTEGER PRIMARY KEY,
			body TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		selectQuery: fmt.Sprintf(`SELECT body FROM tracker_snapshot WHERE id = %d`, snapshotRowID),
		insertQuery: fmt.Sprintf(`INSERT INTO tracker_snapshot (id, body, updated_at) VALUES (%d, %s, %s)
			ON CONFLICT (id) DO NOTHING`, snapshotRowID, p1, p2),
		upsertQuery: fmt.Sprintf(`INSERT INTO tracker_snapshot (id, body, updated_at) VALUES (%d, %s, %s)
			ON CONFLICT (id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`, snapshotRowID, p1, p2),
	}, nil
}

// Name returns the backend name.
func (c *SQLCodec) Name() string {
	return c.backend
}

// Init creates the snapshot table and an empty snapshot row if absent.
func (c *SQLCodec) Init(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, c.createQuery); err != nil {
		return fmt.Errorf("%w: create snapshot table: %v", store.ErrPersistence, err)
	}

	data, err := encodeSnapshot(store.New())
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", store.ErrPersistence, err)
	}
	res, err := c.db.ExecContext(ctx, c.insertQuery, string(data), c.timestamp())
	if err != nil {
		return fmt.Errorf("%w: initialize snapshot: %v", store.ErrPersistence, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.logger.Info().Msg("Snapshot not found, created empty snapshot")
	}
	return nil
}

// Load reads and decodes the snapshot row.
func (c *SQLCodec) Load(ctx context.Context) (*store.Store, error) {
	var body string
	err := c.db.QueryRowContext(ctx, c.selectQuery).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		c.logger.Warn().Msg("Snapshot does not exist, starting with an empty store")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeMissing).Inc()
		return store.New(), nil
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to read snapshot")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeError).Inc()
		return nil, fmt.Errorf("%w: read snapshot: %v", store.ErrPersistence, err)
	}

	s, err := decodeSnapshot([]byte(body))
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to parse snapshot, starting with an empty store")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeCorrupt).Inc()
		return store.New(), nil
	}

	c.logger.Info().Int("devices", s.Len()).Msg("Snapshot loaded")
	observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeOK).Inc()
	return s, nil
}

// Save replaces the snapshot row.
func (c *SQLCodec) Save(ctx context.Context, s *store.Store) error {
	data, err := encodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", store.ErrPersistence, err)
	}
	if _, err := c.db.ExecContext(ctx, c.upsertQuery, string(data), c.timestamp()); err != nil {
		c.logger.Error().Err(err).Msg("Failed to write snapshot")
		return fmt.Errorf("%w: write snapshot: %v", store.ErrPersistence, err)
	}
	return nil
}

func (c *SQLCodec) timestamp() string {
	return c.now().UTC().Format(time.RFC3339Nano)
}
