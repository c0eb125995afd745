package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/location-tracker/internal/api"
	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/observability"
	"github.com/benmeehan/location-tracker/internal/persistence"
	"github.com/benmeehan/location-tracker/internal/service_registry"
	"github.com/benmeehan/location-tracker/internal/state_managers"
	"github.com/benmeehan/location-tracker/internal/utils"
	"github.com/benmeehan/location-tracker/pkg/file"
	"github.com/benmeehan/location-tracker/pkg/geocode"
	"github.com/benmeehan/location-tracker/pkg/mqtt"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		bootLog := observability.NewLogger("info", "json")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := observability.NewLogger(config.Logging.Level, config.Logging.Format)

	version, err := semver.NewVersion(constants.Version)
	if err != nil {
		log.Fatal().Err(err).Str("version", constants.Version).Msg("Invalid build version")
	}
	log.Info().Str("version", version.String()).Str("config", *configPath).Msg("Starting location tracker")

	// Open the snapshot backend and load the device store
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	codec, closer, err := persistence.Open(startupCtx, config.Storage, fileClient, log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("backend", config.Storage.Backend).Msg("Failed to open storage")
	}
	defer closer.Close()

	devices := state_managers.NewDeviceStateManager(codec, log)
	if err := devices.LoadState(context.Background()); err != nil {
		log.Fatal().Err(err).Str("backend", codec.Name()).Msg("Failed to load device state")
	}

	deps := service_registry.Dependencies{
		Devices: devices,
		Version: version,
	}

	// Initialize the shared MQTT connection
	var mqttClient *mqtt.MqttService
	if config.Services.MQTTIngest.Enabled {
		clientID := mqttClientID(config.Services.MQTTIngest.ClientID)
		log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		mqttClient = mqtt.NewMqttService(fileClient)
		err = mqttClient.Initialize(mqtt.Options{
			Broker:         config.Services.MQTTIngest.Broker,
			ClientID:       clientID,
			Username:       config.Services.MQTTIngest.Username,
			Password:       config.Services.MQTTIngest.Password,
			CACertificate:  config.Services.MQTTIngest.CACertificate,
			ConnectTimeout: 30 * time.Second,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		deps.MQTTClient = mqttClient
	}

	if config.Geocoding.Enabled {
		geocoder, err := geocode.NewGoogleGeocoder(config.Geocoding.MapsAPIKey, config.Geocoding.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create geocoder")
		}
		deps.Geocoder = api.Geocoder(geocoder)
	}

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(log)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config, deps); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Int("devices", devices.DeviceCount()).Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
	}
	if mqttClient != nil {
		mqttClient.Disconnect(250)
	}
}

// mqttClientID generates a unique MQTT client ID by appending a UUID to prefix.
func mqttClientID(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
