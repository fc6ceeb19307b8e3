package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/mocks"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/repository"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func testPickup() *model.Pickup {
	return &model.Pickup{
		ID:           42,
		HouseholdRef: "hh-7",
		LocationID:   3,
		Locale:       "sv",
		Earliest:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Latest:       time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC),
	}
}

func TestCancel_CancelForPickup(t *testing.T) {
	logger := zap.NewNop()

	t.Run("cancels pending messages without a notice", func(t *testing.T) {
		mockMessageRepo := &mocks.MessageRepository{}
		mockRenderer := &mocks.Renderer{}
		svc := service.NewCancelService(mockMessageRepo, mockRenderer, logger)

		history := []model.OutgoingMessage{
			{ID: 2, Status: model.MessageStatusRetrying, DestinationAddress: "+46701234567"},
			{ID: 1, Status: model.MessageStatusQueued, DestinationAddress: "+46701234567"},
		}

		mockMessageRepo.On("FindByPickup", context.Background(), int64(42)).Return(history, nil)
		mockMessageRepo.On("Cancel", context.Background(), int64(2)).Return(nil)
		mockMessageRepo.On("Cancel", context.Background(), int64(1)).Return(nil)

		err := svc.CancelForPickup(context.Background(), testPickup())

		assert.NoError(t, err)
		mockMessageRepo.AssertExpectations(t)
		mockMessageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("queues one cancellation notice when a reminder was already sent", func(t *testing.T) {
		mockMessageRepo := &mocks.MessageRepository{}
		mockRenderer := &mocks.Renderer{}
		svc := service.NewCancelService(mockMessageRepo, mockRenderer, logger)

		pickup := testPickup()
		history := []model.OutgoingMessage{
			{ID: 2, Status: model.MessageStatusQueued, DestinationAddress: "+46701234567"},
			{ID: 1, Status: model.MessageStatusSent, DestinationAddress: "+46701234567"},
		}

		mockMessageRepo.On("FindByPickup", context.Background(), int64(42)).Return(history, nil)
		mockMessageRepo.On("Cancel", context.Background(), int64(2)).Return(nil)

		mockRenderer.On("Render", model.IntentPickupCancelled, "sv", pickup.Earliest, pickup.Latest).
			Return("Din matkasseutlämning är inställd.", nil)

		mockMessageRepo.On("Create", context.Background(),
			mock.MatchedBy(func(msg *model.OutgoingMessage) bool {
				return msg.Intent == model.IntentPickupCancelled &&
					msg.PickupID == nil &&
					msg.Status == model.MessageStatusQueued &&
					msg.IdempotencyKey == "pickup-cancelled-42" &&
					msg.DestinationAddress == "+46701234567" &&
					msg.NextAttemptAt != nil
			})).Return(nil)

		err := svc.CancelForPickup(context.Background(), pickup)

		assert.NoError(t, err)
		mockMessageRepo.AssertExpectations(t)
		mockRenderer.AssertExpectations(t)
	})

	t.Run("replayed deletion queues no second notice", func(t *testing.T) {
		mockMessageRepo := &mocks.MessageRepository{}
		mockRenderer := &mocks.Renderer{}
		svc := service.NewCancelService(mockMessageRepo, mockRenderer, logger)

		pickup := testPickup()
		history := []model.OutgoingMessage{
			{ID: 1, Status: model.MessageStatusSent, DestinationAddress: "+46701234567"},
		}

		mockMessageRepo.On("FindByPickup", context.Background(), int64(42)).Return(history, nil)
		mockRenderer.On("Render", model.IntentPickupCancelled, "sv", pickup.Earliest, pickup.Latest).
			Return("Din matkasseutlämning är inställd.", nil)
		mockMessageRepo.On("Create", context.Background(), mock.AnythingOfType("*model.OutgoingMessage")).
			Return(repository.ErrMessageDuplicate)

		err := svc.CancelForPickup(context.Background(), pickup)

		assert.NoError(t, err)
	})

	t.Run("render failure falls back to the plain notice text", func(t *testing.T) {
		mockMessageRepo := &mocks.MessageRepository{}
		mockRenderer := &mocks.Renderer{}
		svc := service.NewCancelService(mockMessageRepo, mockRenderer, logger)

		pickup := testPickup()
		history := []model.OutgoingMessage{
			{ID: 1, Status: model.MessageStatusSent, DestinationAddress: "+46701234567"},
		}

		mockMessageRepo.On("FindByPickup", context.Background(), int64(42)).Return(history, nil)
		mockRenderer.On("Render", model.IntentPickupCancelled, "sv", pickup.Earliest, pickup.Latest).
			Return("", errors.New("template missing"))

		mockMessageRepo.On("Create", context.Background(),
			mock.MatchedBy(func(msg *model.OutgoingMessage) bool {
				return msg.Text != ""
			})).Return(nil)

		err := svc.CancelForPickup(context.Background(), pickup)

		assert.NoError(t, err)
		mockMessageRepo.AssertExpectations(t)
	})

	t.Run("lost cancel race is tolerated", func(t *testing.T) {
		mockMessageRepo := &mocks.MessageRepository{}
		mockRenderer := &mocks.Renderer{}
		svc := service.NewCancelService(mockMessageRepo, mockRenderer, logger)

		history := []model.OutgoingMessage{
			{ID: 1, Status: model.MessageStatusQueued, DestinationAddress: "+46701234567"},
		}

		mockMessageRepo.On("FindByPickup", context.Background(), int64(42)).Return(history, nil)
		mockMessageRepo.On("Cancel", context.Background(), int64(1)).Return(repository.ErrNoRowsAffected)

		err := svc.CancelForPickup(context.Background(), testPickup())

		assert.NoError(t, err)
	})

	t.Run("no known destination skips the notice", func(t *testing.T) {
		mockMessageRepo := &mocks.MessageRepository{}
		mockRenderer := &mocks.Renderer{}
		svc := service.NewCancelService(mockMessageRepo, mockRenderer, logger)

		history := []model.OutgoingMessage{
			{ID: 1, Status: model.MessageStatusSent},
		}

		mockMessageRepo.On("FindByPickup", context.Background(), int64(42)).Return(history, nil)

		err := svc.CancelForPickup(context.Background(), testPickup())

		assert.NoError(t, err)
		mockMessageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestCancel_NotifyReschedule(t *testing.T) {
	logger := zap.NewNop()

	newEarliest := time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC)
	newLatest := time.Date(2026, 3, 4, 13, 15, 0, 0, time.UTC)

	t.Run("cancels pending and queues an updated notice with the new window", func(t *testing.T) {
		mockMessageRepo := &mocks.MessageRepository{}
		mockRenderer := &mocks.Renderer{}
		svc := service.NewCancelService(mockMessageRepo, mockRenderer, logger)

		pickup := testPickup()
		history := []model.OutgoingMessage{
			{ID: 1, Status: model.MessageStatusQueued, DestinationAddress: "+46701234567"},
		}

		mockMessageRepo.On("FindByPickup", context.Background(), int64(42)).Return(history, nil)
		mockMessageRepo.On("Cancel", context.Background(), int64(1)).Return(nil)

		mockRenderer.On("Render", model.IntentPickupUpdated, "sv", newEarliest, newLatest).
			Return("Din matkasseutlämning har flyttats.", nil)

		mockMessageRepo.On("Create", context.Background(),
			mock.MatchedBy(func(msg *model.OutgoingMessage) bool {
				return msg.Intent == model.IntentPickupUpdated &&
					msg.PickupID != nil && *msg.PickupID == 42 &&
					msg.IdempotencyKey == fmt.Sprintf("pickup-updated-42-%d", newEarliest.Unix())
			})).Return(nil)

		err := svc.NotifyReschedule(context.Background(), pickup, newEarliest, newLatest)

		assert.NoError(t, err)
		mockMessageRepo.AssertExpectations(t)
		mockRenderer.AssertExpectations(t)
	})

	t.Run("replayed reschedule event queues no second notice", func(t *testing.T) {
		mockMessageRepo := &mocks.MessageRepository{}
		mockRenderer := &mocks.Renderer{}
		svc := service.NewCancelService(mockMessageRepo, mockRenderer, logger)

		pickup := testPickup()
		history := []model.OutgoingMessage{
			{ID: 1, Status: model.MessageStatusCancelled, DestinationAddress: "+46701234567"},
		}

		mockMessageRepo.On("FindByPickup", context.Background(), int64(42)).Return(history, nil)
		mockRenderer.On("Render", model.IntentPickupUpdated, "sv", newEarliest, newLatest).
			Return("Din matkasseutlämning har flyttats.", nil)
		mockMessageRepo.On("Create", context.Background(), mock.AnythingOfType("*model.OutgoingMessage")).
			Return(repository.ErrMessageDuplicate)

		err := svc.NotifyReschedule(context.Background(), pickup, newEarliest, newLatest)

		assert.NoError(t, err)
	})
}
