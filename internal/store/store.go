package store

import (
	"fmt"
	"math"
	"sort"

	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/models"
)

// Store maps device ids to their records. It performs no I/O and no locking;
// callers serialize access (see state_managers.DeviceStateManager).
type Store struct {
	Devices map[string]*models.DeviceRecord `json:"devices"`
}

// New returns an empty store.
func New() *Store {
	return &Store{Devices: make(map[string]*models.DeviceRecord)}
}

// Len returns the number of devices.
func (s *Store) Len() int {
	return len(s.Devices)
}

// UpsertLocation appends a sample to the device history, creating the device on first sight.
// A non-empty name replaces the stored one; an empty name leaves it untouched.
func (s *Store) UpsertLocation(id, name string, sample models.LocationSample) (*models.DeviceRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrValidation)
	}
	if err := ValidateSample(sample); err != nil {
		return nil, err
	}

	record, ok := s.Devices[id]
	if !ok {
		record = &models.DeviceRecord{
			ID:        id,
			Name:      constants.DefaultDeviceName,
			Locations: []models.LocationSample{},
		}
		s.Devices[id] = record
	}
	if name != "" {
		record.Name = name
	}

	record.Locations = append(record.Locations, sample)
	if overflow := len(record.Locations) - constants.RetentionCap; overflow > 0 {
		// Copy into a fresh slice so the dropped prefix can be collected.
		kept := make([]models.LocationSample, constants.RetentionCap)
		copy(kept, record.Locations[overflow:])
		record.Locations = kept
	}
	setLast(record)

	return record, nil
}

// ListDevices returns one summary per device, ordered by id.
func (s *Store) ListDevices() []models.DeviceSummary {
	summaries := make([]models.DeviceSummary, 0, len(s.Devices))
	for id, record := range s.Devices {
		summaries = append(summaries, models.DeviceSummary{
			ID:           id,
			Name:         record.Name,
			LastSeen:     copyString(record.LastSeen),
			LastLocation: copySample(record.LastLocation),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID < summaries[j].ID
	})
	return summaries
}

// GetHistory returns up to limit of the most recent samples, oldest first.
// A limit below 1 is clamped to 1.
func (s *Store) GetHistory(id string, limit int) (models.DeviceHistory, error) {
	record, ok := s.Devices[id]
	if !ok {
		return models.DeviceHistory{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if limit < 1 {
		limit = 1
	}

	start := len(record.Locations) - limit
	if start < 0 {
		start = 0
	}
	locations := make([]models.LocationSample, len(record.Locations)-start)
	copy(locations, record.Locations[start:])

	return models.DeviceHistory{
		ID:        id,
		Name:      record.Name,
		Locations: locations,
	}, nil
}

// DeleteDevice removes the device and its history.
func (s *Store) DeleteDevice(id string) error {
	if _, ok := s.Devices[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.Devices, id)
	return nil
}

// ClearHistory empties the device history and its derived last-seen fields. The name is kept.
func (s *Store) ClearHistory(id string) error {
	record, ok := s.Devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	record.Locations = []models.LocationSample{}
	record.LastSeen = nil
	record.LastLocation = nil
	return nil
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	clone := &Store{Devices: make(map[string]*models.DeviceRecord, len(s.Devices))}
	for id, record := range s.Devices {
		locations := make([]models.LocationSample, len(record.Locations), cap(record.Locations))
		copy(locations, record.Locations)
		clone.Devices[id] = &models.DeviceRecord{
			ID:           record.ID,
			Name:         record.Name,
			Locations:    locations,
			LastSeen:     copyString(record.LastSeen),
			LastLocation: copySample(record.LastLocation),
		}
	}
	return clone
}

// Normalize repairs a store read from a backing resource so that every invariant holds:
// ids match keys, histories are non-nil and within the retention cap, and the derived
// last-seen fields reflect the history tail.
func (s *Store) Normalize() {
	if s.Devices == nil {
		s.Devices = make(map[string]*models.DeviceRecord)
	}
	for id, record := range s.Devices {
		if record == nil {
			delete(s.Devices, id)
			continue
		}
		record.ID = id
		if record.Name == "" {
			record.Name = constants.DefaultDeviceName
		}
		if record.Locations == nil {
			record.Locations = []models.LocationSample{}
		}
		if overflow := len(record.Locations) - constants.RetentionCap; overflow > 0 {
			record.Locations = append([]models.LocationSample(nil), record.Locations[overflow:]...)
		}
		if len(record.Locations) > 0 {
			setLast(record)
		}
	}
}

// ValidateSample checks that the coordinates are finite and within range.
func ValidateSample(sample models.LocationSample) error {
	if math.IsNaN(sample.Latitude) || math.IsInf(sample.Latitude, 0) {
		return fmt.Errorf("%w: latitude must be a finite number", ErrValidation)
	}
	if math.IsNaN(sample.Longitude) || math.IsInf(sample.Longitude, 0) {
		return fmt.Errorf("%w: longitude must be a finite number", ErrValidation)
	}
	if sample.Latitude < -90 || sample.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrValidation, sample.Latitude)
	}
	if sample.Longitude < -180 || sample.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrValidation, sample.Longitude)
	}
	return nil
}

// setLast points the derived fields at the history tail. History must be non-empty.
func setLast(record *models.DeviceRecord) {
	last := record.Locations[len(record.Locations)-1]
	timestamp := last.Timestamp
	record.LastSeen = &timestamp
	record.LastLocation = copySample(&last)
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copySample(sample *models.LocationSample) *models.LocationSample {
	if sample == nil {
		return nil
	}
	c := *sample
	c.Accuracy = copyFloat(sample.Accuracy)
	c.Battery = copyFloat(sample.Battery)
	return &c
}
