package models

// LocationSample represents one reported location fix with optional telemetry.
// Samples are never edited after they are appended to a device history.
type LocationSample struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
	Battery   *float64 `json:"battery"`
	Timestamp string   `json:"timestamp"`
}

// DeviceRecord holds the identity and bounded location history of a tracked device.
type DeviceRecord struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Locations    []LocationSample `json:"locations"`
	LastSeen     *string          `json:"lastSeen,omitempty"`
	LastLocation *LocationSample  `json:"lastLocation,omitempty"`
}

// DeviceSummary is the listing projection of a DeviceRecord.
type DeviceSummary struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	LastSeen     *string         `json:"lastSeen"`
	LastLocation *LocationSample `json:"lastLocation"`
}

// DeviceHistory is the result of a history query: the newest samples, oldest first.
type DeviceHistory struct {
	ID        string           `json:"deviceId"`
	Name      string           `json:"name"`
	Locations []LocationSample `json:"locations"`
}
