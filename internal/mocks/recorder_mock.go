package mocks

import (
	"context"

	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/stretchr/testify/mock"
)

// LocationRecorder is a mock implementation of the services.LocationRecorder interface
type LocationRecorder struct {
	mock.Mock
}

func (m *LocationRecorder) UpsertLocation(ctx context.Context, id, name string, sample models.LocationSample) error {
	args := m.Called(ctx, id, name, sample)
	return args.Error(0)
}
