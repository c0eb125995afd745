package constants

const (
	// RetentionCap is the maximum number of samples kept per device.
	RetentionCap = 1000

	// DefaultHistoryLimit is the number of samples returned when a history query gives no limit.
	DefaultHistoryLimit = 100

	// DefaultDeviceName is assigned to a device first seen without a name.
	DefaultDeviceName = "Unknown Device"

	// TimestampLayout is the ISO-8601 layout used for server-assigned timestamps.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)
