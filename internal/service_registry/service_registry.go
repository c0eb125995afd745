package service_registry

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/location-tracker/internal/api"
	"github.com/benmeehan/location-tracker/internal/registry"
	"github.com/benmeehan/location-tracker/internal/services"
	"github.com/benmeehan/location-tracker/internal/utils"
	"github.com/benmeehan/location-tracker/pkg/mqtt"
	"github.com/rs/zerolog"
)

// Service names, in start order.
const (
	SystemMetricsService = "system_metrics"
	MQTTIngestService    = "mqtt_ingest"
	HTTPAPIService       = "http_api"
)

// Dependencies are the shared components services are built from.
type Dependencies struct {
	Devices    api.DeviceService
	MQTTClient mqtt.MQTTClient // required when MQTT ingest is enabled
	Geocoder   api.Geocoder    // nil disables the address endpoint
	Version    *semver.Version
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	started     []string
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new, empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]registry.Service),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Services returns the registered service names in start order.
func (sr *ServiceRegistry) Services() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			_ = sr.StopServices()
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		sr.started = append(sr.started, name)
	}

	return nil
}

// StopServices stops all started services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.started) - 1; i >= 0; i-- {
		name := sr.started[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	sr.started = nil

	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    SystemMetricsService,
			enabled: config.Services.SystemMetrics.Enabled,
			constructor: func() (registry.Service, error) {
				return services.NewMetricsService(
					config.Services.SystemMetrics.MetricsConfig,
					config.Services.SystemMetrics.Interval,
					config.Services.SystemMetrics.Timeout,
					sr.Logger,
				), nil
			},
		},
		{
			name:    MQTTIngestService,
			enabled: config.Services.MQTTIngest.Enabled,
			constructor: func() (registry.Service, error) {
				if deps.MQTTClient == nil {
					return nil, errors.New("mqtt ingest is enabled but no MQTT client is connected")
				}
				return services.NewIngestService(
					config.Services.MQTTIngest.LocationTopic,
					config.Services.MQTTIngest.SubscribedNMEATopic(),
					config.Services.MQTTIngest.QOS,
					config.Services.MQTTIngest.Workers,
					deps.MQTTClient,
					deps.Devices,
					sr.Logger,
				), nil
			},
		},
		{
			name:    HTTPAPIService,
			enabled: true,
			constructor: func() (registry.Service, error) {
				if deps.Version == nil {
					return nil, errors.New("build version is required")
				}
				return api.New(api.Config{
					Host:            config.Server.Host,
					Port:            config.Server.Port,
					ReadTimeout:     config.Server.ReadTimeout,
					WriteTimeout:    config.Server.WriteTimeout,
					IdleTimeout:     config.Server.IdleTimeout,
					ShutdownTimeout: config.Server.ShutdownTimeout,
					AllowedOrigin:   config.Server.AllowedOrigin,
				}, deps.Devices, deps.Geocoder, deps.Version, sr.Logger), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
