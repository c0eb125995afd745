package mocks

import (
	"context"

	"github.com/benmeehan/location-tracker/internal/store"
	"github.com/stretchr/testify/mock"
)

// Codec is a mock implementation of the persistence.Codec interface
type Codec struct {
	mock.Mock
}

func (m *Codec) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *Codec) Init(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Codec) Load(ctx context.Context) (*store.Store, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*store.Store)
	return s, args.Error(1)
}

func (m *Codec) Save(ctx context.Context, s *store.Store) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}
