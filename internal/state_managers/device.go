package state_managers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/benmeehan/location-tracker/internal/observability"
	"github.com/benmeehan/location-tracker/internal/persistence"
	"github.com/benmeehan/location-tracker/internal/store"
	"github.com/rs/zerolog"
)

// Operation names, used in logs and metric labels.
const (
	opUpsertLocation = "upsert_location"
	opDeleteDevice   = "delete_device"
	opClearHistory   = "clear_history"
)

// DeviceStateManager serializes access to the device store and commits every mutation
// through the codec before returning.
//
// Mutations run against a copy of the cached store; the copy replaces the cache only after
// the snapshot is saved. A failed save therefore leaves the visible state untouched.
type DeviceStateManager struct {
	codec  persistence.Codec
	logger zerolog.Logger

	mu    sync.RWMutex
	state *store.Store
}

// NewDeviceStateManager initializes a new DeviceStateManager with an empty store.
// Call LoadState to populate it from the codec.
func NewDeviceStateManager(codec persistence.Codec, logger zerolog.Logger) *DeviceStateManager {
	return &DeviceStateManager{
		codec:  codec,
		logger: logger.With().Str("component", "device_state").Logger(),
		state:  store.New(),
	}
}

// LoadState replaces the cached store with the persisted snapshot. When the snapshot cannot be
// read the cached store is left as it is and the error is returned.
func (sm *DeviceStateManager) LoadState(ctx context.Context) error {
	loaded, err := sm.codec.Load(ctx)
	if err != nil {
		sm.logger.Error().Err(err).Str("backend", sm.codec.Name()).Msg("Failed to load device state")
		return err
	}
	if loaded == nil {
		loaded = store.New()
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.state = loaded
	observability.Devices.Set(float64(loaded.Len()))
	sm.logger.Info().Int("devices", loaded.Len()).Str("backend", sm.codec.Name()).Msg("Device state loaded")
	return nil
}

// UpsertLocation appends a sample to the device history, creating the device if needed.
func (sm *DeviceStateManager) UpsertLocation(ctx context.Context, id, name string, sample models.LocationSample) error {
	return sm.mutate(ctx, opUpsertLocation, id, func(s *store.Store) error {
		_, err := s.UpsertLocation(id, name, sample)
		return err
	})
}

// DeleteDevice removes a device and its history.
func (sm *DeviceStateManager) DeleteDevice(ctx context.Context, id string) error {
	return sm.mutate(ctx, opDeleteDevice, id, func(s *store.Store) error {
		return s.DeleteDevice(id)
	})
}

// ClearHistory empties a device history, keeping the device.
func (sm *DeviceStateManager) ClearHistory(ctx context.Context, id string) error {
	return sm.mutate(ctx, opClearHistory, id, func(s *store.Store) error {
		return s.ClearHistory(id)
	})
}

// ListDevices returns a summary of every device.
func (sm *DeviceStateManager) ListDevices(_ context.Context) []models.DeviceSummary {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.state.ListDevices()
}

// GetHistory returns up to limit of the most recent samples of a device.
func (sm *DeviceStateManager) GetHistory(_ context.Context, id string, limit int) (models.DeviceHistory, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.state.GetHistory(id, limit)
}

// LastLocation returns the most recent sample of a device, or nil when its history is empty.
func (sm *DeviceStateManager) LastLocation(_ context.Context, id string) (*models.LocationSample, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	record, ok := sm.state.Devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if record.LastLocation == nil {
		return nil, nil
	}
	last := *record.LastLocation
	return &last, nil
}

// DeviceCount returns the number of stored devices.
func (sm *DeviceStateManager) DeviceCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.state.Len()
}

// mutate runs one read-mutate-commit cycle under the write lock.
func (sm *DeviceStateManager) mutate(ctx context.Context, op, id string, apply func(*store.Store) error) (err error) {
	start := time.Now()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", store.ErrPersistence, op, r)
			sm.logger.Error().Str("operation", op).Str("device_id", id).Interface("panic", r).Msg("Store operation panicked")
		}
		observability.ObserveCommit(op, observability.ResultLabel(err), start)
	}()

	working := sm.state.Clone()
	if err := apply(working); err != nil {
		sm.logger.Debug().Err(err).Str("operation", op).Str("device_id", id).Msg("Store operation rejected")
		return err
	}

	if err := sm.codec.Save(ctx, working); err != nil {
		if !errors.Is(err, store.ErrPersistence) {
			err = fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
		sm.logger.Error().Err(err).Str("operation", op).Str("device_id", id).Msg("Failed to commit store mutation, rolled back")
		return err
	}

	sm.state = working
	observability.Devices.Set(float64(working.Len()))
	sm.logger.Debug().
		Str("operation", op).
		Str("device_id", id).
		Dur("elapsed", time.Since(start)).
		Msg("Store mutation committed")
	return nil
}
