package mocks

import (
	"context"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/stretchr/testify/mock"
)

type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Create(ctx context.Context, message *model.OutgoingMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepository) GetByID(ctx context.Context, id int64) (*model.OutgoingMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OutgoingMessage), args.Error(1)
}

func (m *MessageRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.OutgoingMessage, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OutgoingMessage), args.Error(1)
}

func (m *MessageRepository) FindDue(ctx context.Context, now time.Time, staleThreshold time.Time, limit int) ([]model.OutgoingMessage, error) {
	args := m.Called(ctx, now, staleThreshold, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutgoingMessage), args.Error(1)
}

func (m *MessageRepository) ClaimForSending(ctx context.Context, id int64, staleThreshold time.Time) error {
	args := m.Called(ctx, id, staleThreshold)
	return args.Error(0)
}

func (m *MessageRepository) ReleaseClaim(ctx context.Context, id int64, staleThreshold time.Time) error {
	args := m.Called(ctx, id, staleThreshold)
	return args.Error(0)
}

func (m *MessageRepository) MarkSent(ctx context.Context, id int64, providerMsgID string, sentAt time.Time) error {
	args := m.Called(ctx, id, providerMsgID, sentAt)
	return args.Error(0)
}

func (m *MessageRepository) MarkRetrying(ctx context.Context, id int64, nextAttemptAt time.Time, lastError string) error {
	args := m.Called(ctx, id, nextAttemptAt, lastError)
	return args.Error(0)
}

func (m *MessageRepository) MarkFailed(ctx context.Context, id int64, lastError string, balanceFailure bool) error {
	args := m.Called(ctx, id, lastError, balanceFailure)
	return args.Error(0)
}

func (m *MessageRepository) Cancel(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MessageRepository) FindByPickup(ctx context.Context, pickupID int64) ([]model.OutgoingMessage, error) {
	args := m.Called(ctx, pickupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutgoingMessage), args.Error(1)
}

func (m *MessageRepository) ListFailures(ctx context.Context, limit, offset int) ([]model.OutgoingMessage, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]model.OutgoingMessage), args.Get(1).(int64), args.Error(2)
}

func (m *MessageRepository) FindBalanceFailures(ctx context.Context) ([]model.OutgoingMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutgoingMessage), args.Error(1)
}

func (m *MessageRepository) SetDismissed(ctx context.Context, id int64, by string, at time.Time) error {
	args := m.Called(ctx, id, by, at)
	return args.Error(0)
}

func (m *MessageRepository) ClearDismissed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MessageRepository) FindUnconfirmedSent(ctx context.Context, sentBefore time.Time, limit int) ([]model.OutgoingMessage, error) {
	args := m.Called(ctx, sentBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutgoingMessage), args.Error(1)
}

func (m *MessageRepository) SetProviderStatus(ctx context.Context, id int64, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MessageRepository) AnonymizeByHousehold(ctx context.Context, householdRef string) (int64, error) {
	args := m.Called(ctx, householdRef)
	return args.Get(0).(int64), args.Error(1)
}
