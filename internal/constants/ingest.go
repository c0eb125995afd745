package constants

import "time"

// Ingest sources, used as metric labels and log fields.
const (
	IngestSourceHTTP = "http"
	IngestSourceMQTT = "mqtt"
	IngestSourceNMEA = "nmea"
)

const (
	DefaultLocationTopic = "tracker/location"
	DefaultNMEATopic     = "tracker/nmea/+"
	DefaultIngestWorkers = 4

	// IngestTimeout bounds a single MQTT message commit.
	IngestTimeout = 10 * time.Second
)
