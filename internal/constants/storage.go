package constants

// Storage backends
const (
	StorageBackendFile     = "file"
	StorageBackendRedis    = "redis"
	StorageBackendSQLite   = "sqlite"
	StorageBackendPostgres = "postgres"
)

const (
	// DefaultDataFile is the snapshot path used by the file backend.
	DefaultDataFile = "data/locations.json"

	// DefaultRedisKey is the key holding the snapshot in Redis.
	DefaultRedisKey = "tracker:snapshot"
)
