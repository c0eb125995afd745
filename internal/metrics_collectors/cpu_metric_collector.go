package metrics_collectors

import (
	"context"
	"errors"

	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
)

// CPUMetricCollector collects CPU usage metrics.
type CPUMetricCollector struct {
	Logger zerolog.Logger
}

func (c *CPUMetricCollector) Name() string {
	return "cpu"
}

func (c *CPUMetricCollector) Collect(ctx context.Context) (float64, error) {
	cpuPercentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}

	if len(cpuPercentages) == 0 {
		return 0, errors.New("CPU usage data is empty")
	}

	c.Logger.Debug().Float64("cpu_usage", cpuPercentages[0]).Msg("CPU usage collected successfully")
	return cpuPercentages[0], nil
}

func (c *CPUMetricCollector) IsEnabled(config *models.MetricsConfig) bool {
	return config.MonitorCPU
}

func (c *CPUMetricCollector) Unit() string {
	return "percentage"
}

func (c *CPUMetricCollector) Description() string {
	return "Percentage of CPU utilization across all cores."
}
