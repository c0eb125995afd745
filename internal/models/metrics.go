package models

// MetricsConfig selects which host metrics the system metrics service samples.
type MetricsConfig struct {
	MonitorCPU        bool   `yaml:"monitor_cpu"`
	MonitorMemory     bool   `yaml:"monitor_memory"`
	MonitorDisk       bool   `yaml:"monitor_disk"`
	MonitorGoroutines bool   `yaml:"monitor_goroutines"`
	DiskPath          string `yaml:"disk_path"` // Filesystem holding the snapshot
}
