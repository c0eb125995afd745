package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/location-tracker/internal/metrics_collectors"
	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/benmeehan/location-tracker/internal/observability"
	"github.com/benmeehan/location-tracker/internal/utils"
	"github.com/rs/zerolog"
)

// MetricsService samples host metrics on an interval and exports them as gauges.
type MetricsService struct {
	metricsConfig *models.MetricsConfig
	interval      time.Duration
	timeout       time.Duration
	logger        zerolog.Logger
	registry      *metrics_collectors.MetricsRegistry
	workerPool    *utils.WorkerPool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMetricsService initializes and returns a new instance of MetricsService.
func NewMetricsService(config models.MetricsConfig, interval, timeout time.Duration, logger zerolog.Logger) *MetricsService {
	service := &MetricsService{
		metricsConfig: &config,
		interval:      interval,
		timeout:       timeout,
		logger:        logger.With().Str("component", "system_metrics").Logger(),
		registry:      metrics_collectors.NewMetricsRegistry(),
	}

	// Register default metric collectors
	service.registerDefaultCollectors()

	return service
}

// registerDefaultCollectors registers the default metric collectors.
func (m *MetricsService) registerDefaultCollectors() {
	m.registry.Register(&metrics_collectors.CPUMetricCollector{Logger: m.logger})
	m.registry.Register(&metrics_collectors.MemoryMetricCollector{Logger: m.logger})
	m.registry.Register(&metrics_collectors.DiskMetricCollector{Logger: m.logger, Path: m.metricsConfig.DiskPath})
	m.registry.Register(&metrics_collectors.GoroutineMetricCollector{Logger: m.logger})
}

// Register adds or replaces a collector.
func (m *MetricsService) Register(collector metrics_collectors.MetricCollector) {
	m.registry.Register(collector)
}

// Start initiates periodic metrics collection.
func (m *MetricsService) Start() error {
	if m.ctx != nil {
		m.logger.Warn().Msg("MetricsService is already running")
		return errors.New("metrics service is already running")
	}

	if err := validateMetricsConfig(m.metricsConfig); err != nil {
		m.logger.Error().Err(err).Msg("Invalid metrics configuration")
		return err
	}
	if m.interval <= 0 {
		return errors.New("metrics interval must be positive")
	}

	m.workerPool = utils.NewWorkerPool(len(m.registry.Enabled(m.metricsConfig)))
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.wg.Add(1)
	go m.runMetricsCollectionLoop()

	m.logger.Info().Dur("interval", m.interval).Msg("MetricsService started successfully")
	return nil
}

// validateMetricsConfig checks that at least one metric is enabled.
func validateMetricsConfig(config *models.MetricsConfig) error {
	if !config.MonitorCPU && !config.MonitorMemory && !config.MonitorDisk && !config.MonitorGoroutines {
		return errors.New("no metrics enabled in configuration")
	}
	return nil
}

// runMetricsCollectionLoop collects once immediately and then on every tick.
func (m *MetricsService) runMetricsCollectionLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CollectOnce(m.ctx)
	for {
		select {
		case <-ticker.C:
			m.CollectOnce(m.ctx)
		case <-m.ctx.Done():
			m.logger.Info().Msg("Stopping metrics collection")
			return
		}
	}
}

// CollectOnce runs every enabled collector concurrently and updates the usage gauges.
// It returns the number of collectors that succeeded.
func (m *MetricsService) CollectOnce(parent context.Context) int {
	ctx, cancel := context.WithTimeout(parent, m.timeout)
	defer cancel()

	pool := m.workerPool
	if pool == nil {
		pool = utils.NewWorkerPool(1)
		defer pool.Shutdown()
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, collector := range m.registry.Enabled(m.metricsConfig) {
		wg.Add(1)
		if !pool.Submit(func() {
			defer wg.Done()
			value, err := collector.Collect(ctx)
			if err != nil {
				m.logger.Warn().Err(err).Str("metric", collector.Name()).Msg("Failed to collect metric")
				return
			}
			observability.SystemUsage.WithLabelValues(collector.Name(), collector.Unit()).Set(value)

			mu.Lock()
			succeeded++
			mu.Unlock()
		}) {
			wg.Done()
		}
	}

	wg.Wait()
	m.logger.Debug().Int("collected", succeeded).Msg("Metrics collected")
	return succeeded
}

// Stop gracefully stops the metrics service.
func (m *MetricsService) Stop() error {
	if m.ctx == nil {
		m.logger.Warn().Msg("MetricsService is not running")
		return errors.New("metrics service is not running")
	}

	m.cancel()
	m.wg.Wait()
	m.workerPool.Shutdown()
	m.ctx = nil
	m.logger.Info().Msg("MetricsService stopped successfully")
	return nil
}
