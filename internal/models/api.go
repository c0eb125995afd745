package models

// APIResponse is the acknowledgement body returned by mutating endpoints.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// APIError is the body returned for client and server errors.
type APIError struct {
	Error string `json:"error"`
}

// HealthStatus is returned by the health endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Devices int    `json:"devices"`
}

// DeviceAddress is the reverse-geocoded address of a device's last location.
type DeviceAddress struct {
	ID        string  `json:"deviceId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}
