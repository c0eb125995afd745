package mocks

import (
	"context"

	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/stretchr/testify/mock"
)

// DeviceService is a mock implementation of the api.DeviceService interface
type DeviceService struct {
	mock.Mock
}

func (m *DeviceService) UpsertLocation(ctx context.Context, id, name string, sample models.LocationSample) error {
	args := m.Called(ctx, id, name, sample)
	return args.Error(0)
}

func (m *DeviceService) DeleteDevice(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *DeviceService) ClearHistory(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *DeviceService) ListDevices(ctx context.Context) []models.DeviceSummary {
	args := m.Called(ctx)
	devices, _ := args.Get(0).([]models.DeviceSummary)
	return devices
}

func (m *DeviceService) GetHistory(ctx context.Context, id string, limit int) (models.DeviceHistory, error) {
	args := m.Called(ctx, id, limit)
	return args.Get(0).(models.DeviceHistory), args.Error(1)
}

func (m *DeviceService) LastLocation(ctx context.Context, id string) (*models.LocationSample, error) {
	args := m.Called(ctx, id)
	sample, _ := args.Get(0).(*models.LocationSample)
	return sample, args.Error(1)
}

func (m *DeviceService) DeviceCount() int {
	args := m.Called()
	return args.Int(0)
}
