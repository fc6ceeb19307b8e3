package mocks

import (
	"context"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/stretchr/testify/mock"
)

type ScheduleRepository struct {
	mock.Mock
}

func (m *ScheduleRepository) FindByLocation(ctx context.Context, locationID int64) ([]model.LocationSchedule, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LocationSchedule), args.Error(1)
}
