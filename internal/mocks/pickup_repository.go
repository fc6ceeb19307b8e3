package mocks

import (
	"context"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/stretchr/testify/mock"
)

type PickupRepository struct {
	mock.Mock
}

func (m *PickupRepository) GetByID(ctx context.Context, id int64) (*model.Pickup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Pickup), args.Error(1)
}

func (m *PickupRepository) SoftDelete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *PickupRepository) UpdateWindow(ctx context.Context, id int64, earliest, latest time.Time) error {
	args := m.Called(ctx, id, earliest, latest)
	return args.Error(0)
}

func (m *PickupRepository) FindUpcoming(ctx context.Context, from, to time.Time) ([]model.Pickup, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Pickup), args.Error(1)
}
