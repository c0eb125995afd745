package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/ingest"
	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/benmeehan/location-tracker/internal/observability"
	"github.com/benmeehan/location-tracker/internal/store"
	"github.com/benmeehan/location-tracker/internal/utils"
	"github.com/benmeehan/location-tracker/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// LocationRecorder persists one location sample for a device.
type LocationRecorder interface {
	UpsertLocation(ctx context.Context, id, name string, sample models.LocationSample) error
}

// IngestService subscribes to the location topics and records every report it receives.
type IngestService struct {
	// Configuration fields
	locationTopic string
	nmeaTopic     string
	qos           int
	workers       int

	// Dependencies
	client   mqtt.MQTTClient
	recorder LocationRecorder
	logger   zerolog.Logger
	now      func() time.Time

	// Internal state management
	mu      sync.Mutex
	pool    *utils.WorkerPool
	topics  []string
	running bool
}

// NewIngestService creates a new IngestService. An empty topic is not subscribed.
func NewIngestService(locationTopic, nmeaTopic string, qos, workers int, client mqtt.MQTTClient,
	recorder LocationRecorder, logger zerolog.Logger) *IngestService {
	return &IngestService{
		locationTopic: locationTopic,
		nmeaTopic:     nmeaTopic,
		qos:           qos,
		workers:       workers,
		client:        client,
		recorder:      recorder,
		logger:        logger.With().Str("component", "mqtt_ingest").Logger(),
		now:           time.Now,
	}
}

// Start subscribes to the configured topics.
func (s *IngestService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("IngestService is already running")
		return errors.New("ingest service is already running")
	}

	s.pool = utils.NewWorkerPool(s.workers)
	s.topics = nil

	subscriptions := []struct {
		topic   string
		handler MQTT.MessageHandler
	}{
		{s.locationTopic, s.handle(constants.IngestSourceMQTT)},
		{s.nmeaTopic, s.handle(constants.IngestSourceNMEA)},
	}
	for _, sub := range subscriptions {
		if sub.topic == "" {
			continue
		}
		token := s.client.Subscribe(sub.topic, byte(s.qos), sub.handler)
		if token.Wait() && token.Error() != nil {
			err := fmt.Errorf("failed to subscribe to %s: %w", sub.topic, token.Error())
			s.logger.Error().Err(err).Str("topic", sub.topic).Msg("Subscription failed")
			s.unsubscribe()
			s.pool.Shutdown()
			return err
		}
		s.topics = append(s.topics, sub.topic)
	}

	s.running = true
	s.logger.Info().
		Strs("topics", s.topics).
		Int("qos", s.qos).
		Int("workers", s.workers).
		Msg("IngestService started")
	return nil
}

// Stop unsubscribes and waits for in-flight messages to be recorded.
func (s *IngestService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Warn().Msg("IngestService is not running")
		return errors.New("ingest service is not running")
	}

	err := s.unsubscribe()
	s.pool.Shutdown()
	s.running = false

	s.logger.Info().Msg("IngestService stopped")
	return err
}

func (s *IngestService) unsubscribe() error {
	if len(s.topics) == 0 {
		return nil
	}
	token := s.client.Unsubscribe(s.topics...)
	s.topics = nil
	if token.Wait() && token.Error() != nil {
		s.logger.Error().Err(token.Error()).Msg("Failed to unsubscribe")
		return token.Error()
	}
	return nil
}

// handle returns a message handler that queues the message on the worker pool.
func (s *IngestService) handle(source string) MQTT.MessageHandler {
	pool := s.pool
	return func(_ MQTT.Client, msg MQTT.Message) {
		topic := msg.Topic()
		payload := append([]byte(nil), msg.Payload()...)

		if !pool.Submit(func() { s.process(source, topic, payload) }) {
			s.logger.Warn().Str("topic", topic).Msg("Dropping message received after shutdown")
		}
	}
}

func (s *IngestService) process(source, topic string, payload []byte) {
	id, name, sample, err := s.decode(source, topic, payload)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), constants.IngestTimeout)
		err = s.recorder.UpsertLocation(ctx, id, name, sample)
		cancel()
	}

	observability.IngestTotal.WithLabelValues(source, observability.ResultLabel(err)).Inc()

	switch {
	case err == nil:
		s.logger.Debug().Str("topic", topic).Str("device_id", id).Msg("Location recorded")
	case errors.Is(err, store.ErrValidation):
		s.logger.Warn().Err(err).Str("topic", topic).Msg("Rejected location report")
	default:
		s.logger.Error().Err(err).Str("topic", topic).Str("device_id", id).Msg("Failed to record location")
	}
}

func (s *IngestService) decode(source, topic string, payload []byte) (string, string, models.LocationSample, error) {
	if source == constants.IngestSourceNMEA {
		id := ingest.DeviceIDFromTopic(topic)
		if id == "" {
			return "", "", models.LocationSample{}, fmt.Errorf("%w: no device id in topic %q", store.ErrValidation, topic)
		}
		sample, err := ingest.ParseNMEA(payload, s.now())
		return id, "", sample, err
	}

	report, err := ingest.DecodeReport(payload)
	if err != nil {
		return "", "", models.LocationSample{}, err
	}
	sample, err := report.Sample(s.now())
	return report.DeviceID, report.DeviceName, sample, err
}
