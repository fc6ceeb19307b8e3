package mocks

import (
	"context"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/stretchr/testify/mock"
)

type CancelService struct {
	mock.Mock
}

func (m *CancelService) CancelForPickup(ctx context.Context, pickup *model.Pickup) error {
	args := m.Called(ctx, pickup)
	return args.Error(0)
}

func (m *CancelService) NotifyReschedule(ctx context.Context, pickup *model.Pickup, newEarliest, newLatest time.Time) error {
	args := m.Called(ctx, pickup, newEarliest, newLatest)
	return args.Error(0)
}
