package persistence

import (
	"context"
	"fmt"
	"io"

	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/utils"
	"github.com/benmeehan/location-tracker/pkg/file"
	"github.com/rs/zerolog"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the codec selected by the storage configuration and initializes its backing
// resource. The returned closer releases the backend connection.
func Open(ctx context.Context, config utils.StorageConfig, fileClient file.FileOperations,
	logger zerolog.Logger) (Codec, io.Closer, error) {

	var (
		codec  Codec
		closer io.Closer = nopCloser{}
	)

	switch config.Backend {
	case constants.StorageBackendFile, "":
		codec = NewFileCodec(config.DataFile, fileClient, logger)

	case constants.StorageBackendRedis:
		client, err := NewRedisClient(ctx, config.Redis.Addr, config.Redis.Password, config.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		codec, closer = NewRedisCodec(client, config.Redis.Key, logger), client

	case constants.StorageBackendSQLite, constants.StorageBackendPostgres:
		db, err := OpenSQL(ctx, config.Backend, config.SQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		sqlCodec, err := NewSQLCodec(db, config.Backend, logger)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		codec, closer = sqlCodec, db

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", config.Backend)
	}

	if err := codec.Init(ctx); err != nil {
		closer.Close()
		return nil, nil, err
	}

	logger.Info().Str("backend", codec.Name()).Msg("Storage backend ready")
	return codec, closer, nil
}
