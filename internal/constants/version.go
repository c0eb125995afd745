package constants

// Version is the release version reported by the health endpoint. Overridden at build time with
// -ldflags "-X github.com/benmeehan/location-tracker/internal/constants.Version=..."
var Version = "1.2.0"
