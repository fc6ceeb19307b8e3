package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/mocks"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/repository"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/service"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/smsprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func dispatchConfig() service.DispatchConfig {
	return service.DispatchConfig{
		BatchSize:        100,
		SendTimeout:      time.Second,
		ClaimStaleAfter:  5 * time.Minute,
		ConfirmAfter:     time.Hour,
		StaleUnconfirmed: 24 * time.Hour,
		ConfirmBatchSize: 50,
	}
}

type dispatchFixture struct {
	messageRepo  *mocks.MessageRepository
	pickupRepo   *mocks.PickupRepository
	scheduleRepo *mocks.ScheduleRepository
	provider     *mocks.Provider
	health       *mocks.HealthReporter
	svc          service.DispatchService
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		messageRepo:  &mocks.MessageRepository{},
		pickupRepo:   &mocks.PickupRepository{},
		scheduleRepo: &mocks.ScheduleRepository{},
		provider:     &mocks.Provider{},
		health:       &mocks.HealthReporter{},
	}
	f.svc = service.NewDispatchService(f.messageRepo, f.pickupRepo, f.scheduleRepo,
		f.provider, f.health, dispatchConfig(), zap.NewNop())
	return f
}

func queuedMessage(id int64, attempts int) model.OutgoingMessage {
	return model.OutgoingMessage{
		ID:                 id,
		Intent:             model.IntentPickupReminder,
		HouseholdRef:       "hh-7",
		DestinationAddress: "+46701234567",
		Text:               "Reminder: pickup tomorrow",
		Status:             model.MessageStatusQueued,
		AttemptCount:       attempts,
	}
}

func TestDispatch_Tick(t *testing.T) {
	t.Run("delivers a due message and marks it sent", func(t *testing.T) {
		f := newDispatchFixture()
		msg := queuedMessage(1, 0)

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.messageRepo.On("ClaimForSending", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(nil)

		f.provider.On("Send", mock.Anything, "+46701234567", "Reminder: pickup tomorrow").
			Return(smsprovider.Outcome{Kind: smsprovider.OutcomeDelivered, ProviderMsgID: "prov-1"})

		inFlight := msg
		inFlight.Status = model.MessageStatusSending
		f.messageRepo.On("GetByID", context.Background(), int64(1)).Return(&inFlight, nil)

		f.messageRepo.On("MarkSent", context.Background(), int64(1), "prov-1",
			mock.AnythingOfType("time.Time")).Return(nil)
		f.health.On("ReportRecovery", context.Background(), "sms-provider").Return()

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, service.TickResult{Selected: 1, Sent: 1}, result)

		f.messageRepo.AssertExpectations(t)
		f.provider.AssertExpectations(t)
		f.health.AssertExpectations(t)
	})

	t.Run("schedules a retry five minutes out on the first upstream error", func(t *testing.T) {
		f := newDispatchFixture()
		msg := queuedMessage(1, 0)

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.messageRepo.On("ClaimForSending", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(nil)

		f.provider.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(smsprovider.Outcome{Kind: smsprovider.OutcomeRetriable, HTTPStatus: 503})

		inFlight := msg
		inFlight.Status = model.MessageStatusSending
		f.messageRepo.On("GetByID", context.Background(), int64(1)).Return(&inFlight, nil)

		f.health.On("ReportFailure", context.Background(), "sms-provider", "provider returned HTTP 503").Return()

		f.messageRepo.On("MarkRetrying", context.Background(), int64(1),
			mock.MatchedBy(func(next time.Time) bool {
				until := time.Until(next)
				return until > 4*time.Minute && until <= 5*time.Minute
			}), "provider returned HTTP 503").Return(nil)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, service.TickResult{Selected: 1, Retried: 1}, result)

		f.messageRepo.AssertExpectations(t)
		f.health.AssertExpectations(t)
	})

	t.Run("backs off thirty minutes on the second upstream error", func(t *testing.T) {
		f := newDispatchFixture()
		msg := queuedMessage(1, 1)
		msg.Status = model.MessageStatusRetrying

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.messageRepo.On("ClaimForSending", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(nil)

		f.provider.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(smsprovider.Outcome{Kind: smsprovider.OutcomeRetriable, HTTPStatus: 502})

		inFlight := msg
		inFlight.Status = model.MessageStatusSending
		f.messageRepo.On("GetByID", context.Background(), int64(1)).Return(&inFlight, nil)

		f.health.On("ReportFailure", context.Background(), "sms-provider", mock.Anything).Return()

		f.messageRepo.On("MarkRetrying", context.Background(), int64(1),
			mock.MatchedBy(func(next time.Time) bool {
				until := time.Until(next)
				return until > 29*time.Minute && until <= 30*time.Minute
			}), mock.Anything).Return(nil)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Retried)
	})

	t.Run("fails the message when the attempt budget is spent", func(t *testing.T) {
		f := newDispatchFixture()
		msg := queuedMessage(1, 2)
		msg.Status = model.MessageStatusRetrying

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.messageRepo.On("ClaimForSending", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(nil)

		f.provider.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(smsprovider.Outcome{Kind: smsprovider.OutcomeRetriable, HTTPStatus: 500})

		inFlight := msg
		inFlight.Status = model.MessageStatusSending
		f.messageRepo.On("GetByID", context.Background(), int64(1)).Return(&inFlight, nil)

		f.health.On("ReportFailure", context.Background(), "sms-provider", mock.Anything).Return()
		f.messageRepo.On("MarkFailed", context.Background(), int64(1),
			"provider returned HTTP 500", false).Return(nil)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Failed)

		f.messageRepo.AssertNotCalled(t, "MarkRetrying", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("permanent rejection fails immediately with redacted error", func(t *testing.T) {
		f := newDispatchFixture()
		msg := queuedMessage(1, 0)

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.messageRepo.On("ClaimForSending", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(nil)

		f.provider.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(smsprovider.Outcome{
				Kind:   smsprovider.OutcomePermanent,
				Reason: "number +46701234567 is blocked",
			})

		inFlight := msg
		inFlight.Status = model.MessageStatusSending
		f.messageRepo.On("GetByID", context.Background(), int64(1)).Return(&inFlight, nil)

		f.messageRepo.On("MarkFailed", context.Background(), int64(1),
			"number [redacted] is blocked", false).Return(nil)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		f.messageRepo.AssertExpectations(t)
	})

	t.Run("balance exhaustion fails the message flagged for requeue", func(t *testing.T) {
		f := newDispatchFixture()
		msg := queuedMessage(1, 0)

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.messageRepo.On("ClaimForSending", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(nil)

		f.provider.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(smsprovider.Outcome{Kind: smsprovider.OutcomeBalanceExhausted})

		inFlight := msg
		inFlight.Status = model.MessageStatusSending
		f.messageRepo.On("GetByID", context.Background(), int64(1)).Return(&inFlight, nil)

		f.health.On("ReportFailure", context.Background(), "sms-provider", "balance exhausted").Return()
		f.messageRepo.On("MarkFailed", context.Background(), int64(1),
			"provider account balance exhausted", true).Return(nil)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		f.messageRepo.AssertExpectations(t)
	})

	t.Run("message outside operating hours stays queued", func(t *testing.T) {
		f := newDispatchFixture()
		pickupID := int64(42)
		msg := queuedMessage(1, 0)
		msg.PickupID = &pickupID

		pickup := testPickup()
		pickup.Earliest = time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)
		pickup.Latest = time.Date(2026, 3, 2, 22, 15, 0, 0, time.UTC)

		schedules := []model.LocationSchedule{{
			LocationID:  3,
			StartDate:   pickup.Earliest.AddDate(0, -1, 0),
			EndDate:     pickup.Earliest.AddDate(0, 1, 0),
			Weekday:     int(time.Monday),
			OpenMinute:  9 * 60,
			CloseMinute: 17 * 60,
		}}

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.pickupRepo.On("GetByID", context.Background(), int64(42)).Return(pickup, nil)
		f.scheduleRepo.On("FindByLocation", context.Background(), int64(3)).Return(schedules, nil)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, service.TickResult{Selected: 1, Skipped: 1}, result)

		f.messageRepo.AssertNotCalled(t, "ClaimForSending", mock.Anything, mock.Anything, mock.Anything)
		f.messageRepo.AssertNotCalled(t, "ReleaseClaim", mock.Anything, mock.Anything, mock.Anything)
		f.provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale reclaimed row outside operating hours is handed back to the queue", func(t *testing.T) {
		f := newDispatchFixture()
		pickupID := int64(42)
		msg := queuedMessage(1, 1)
		msg.Status = model.MessageStatusSending
		msg.PickupID = &pickupID

		pickup := testPickup()
		pickup.Earliest = time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)
		pickup.Latest = time.Date(2026, 3, 2, 22, 15, 0, 0, time.UTC)

		schedules := []model.LocationSchedule{{
			LocationID:  3,
			StartDate:   pickup.Earliest.AddDate(0, -1, 0),
			EndDate:     pickup.Earliest.AddDate(0, 1, 0),
			Weekday:     int(time.Monday),
			OpenMinute:  9 * 60,
			CloseMinute: 17 * 60,
		}}

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.pickupRepo.On("GetByID", context.Background(), int64(42)).Return(pickup, nil)
		f.scheduleRepo.On("FindByLocation", context.Background(), int64(3)).Return(schedules, nil)
		f.messageRepo.On("ReleaseClaim", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(nil)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, service.TickResult{Selected: 1, Skipped: 1}, result)

		f.messageRepo.AssertExpectations(t)
		f.provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("eligibility lookup failure fails open and dispatches", func(t *testing.T) {
		f := newDispatchFixture()
		pickupID := int64(42)
		msg := queuedMessage(1, 0)
		msg.PickupID = &pickupID

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.pickupRepo.On("GetByID", context.Background(), int64(42)).
			Return(nil, errors.New("connection refused"))
		f.messageRepo.On("ClaimForSending", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(nil)

		f.provider.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(smsprovider.Outcome{Kind: smsprovider.OutcomeDelivered, ProviderMsgID: "prov-1"})

		inFlight := msg
		inFlight.Status = model.MessageStatusSending
		f.messageRepo.On("GetByID", context.Background(), int64(1)).Return(&inFlight, nil)

		f.messageRepo.On("MarkSent", context.Background(), int64(1), "prov-1",
			mock.AnythingOfType("time.Time")).Return(nil)
		f.health.On("ReportRecovery", context.Background(), "sms-provider").Return()

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Sent)
	})

	t.Run("provider result is discarded when the message was cancelled in flight", func(t *testing.T) {
		f := newDispatchFixture()
		msg := queuedMessage(1, 0)

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.messageRepo.On("ClaimForSending", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(nil)

		f.provider.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(smsprovider.Outcome{Kind: smsprovider.OutcomeDelivered, ProviderMsgID: "prov-1"})

		cancelled := msg
		cancelled.Status = model.MessageStatusCancelled
		f.messageRepo.On("GetByID", context.Background(), int64(1)).Return(&cancelled, nil)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, service.TickResult{Selected: 1, Skipped: 1}, result)

		f.messageRepo.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lost claim skips the message without calling the provider", func(t *testing.T) {
		f := newDispatchFixture()
		msg := queuedMessage(1, 0)

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{msg}, nil)
		f.messageRepo.On("ClaimForSending", context.Background(), int64(1),
			mock.AnythingOfType("time.Time")).Return(repository.ErrNoRowsAffected)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, service.TickResult{Selected: 1, Skipped: 1}, result)

		f.provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		f := newDispatchFixture()

		f.messageRepo.On("FindDue", context.Background(), mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("time.Time"), 100).Return([]model.OutgoingMessage{}, nil)

		result, err := f.svc.Tick(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, service.TickResult{}, result)
	})
}

func TestDispatch_ConfirmationPass(t *testing.T) {
	t.Run("records the provider delivery status", func(t *testing.T) {
		f := newDispatchFixture()

		providerMsgID := "prov-1"
		sentAt := time.Now().Add(-2 * time.Hour)
		msg := queuedMessage(1, 1)
		msg.Status = model.MessageStatusSent
		msg.ProviderMsgID = &providerMsgID
		msg.SentAt = &sentAt

		f.messageRepo.On("FindUnconfirmedSent", context.Background(),
			mock.AnythingOfType("time.Time"), 50).Return([]model.OutgoingMessage{msg}, nil)
		f.provider.On("DeliveryStatus", mock.Anything, "prov-1").
			Return(model.ProviderStatusDelivered, nil)
		f.messageRepo.On("SetProviderStatus", context.Background(), int64(1),
			model.ProviderStatusDelivered).Return(nil)

		err := f.svc.ConfirmationPass(context.Background())

		assert.NoError(t, err)
		f.messageRepo.AssertExpectations(t)
		f.provider.AssertExpectations(t)
	})

	t.Run("lookup failure leaves the message untouched", func(t *testing.T) {
		f := newDispatchFixture()

		providerMsgID := "prov-1"
		sentAt := time.Now().Add(-2 * time.Hour)
		msg := queuedMessage(1, 1)
		msg.Status = model.MessageStatusSent
		msg.ProviderMsgID = &providerMsgID
		msg.SentAt = &sentAt

		f.messageRepo.On("FindUnconfirmedSent", context.Background(),
			mock.AnythingOfType("time.Time"), 50).Return([]model.OutgoingMessage{msg}, nil)
		f.provider.On("DeliveryStatus", mock.Anything, "prov-1").
			Return("", errors.New("connection refused"))

		err := f.svc.ConfirmationPass(context.Background())

		assert.NoError(t, err)
		f.messageRepo.AssertNotCalled(t, "SetProviderStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("message without a provider id is skipped", func(t *testing.T) {
		f := newDispatchFixture()

		msg := queuedMessage(1, 1)
		msg.Status = model.MessageStatusSent

		f.messageRepo.On("FindUnconfirmedSent", context.Background(),
			mock.AnythingOfType("time.Time"), 50).Return([]model.OutgoingMessage{msg}, nil)

		err := f.svc.ConfirmationPass(context.Background())

		assert.NoError(t, err)
		f.provider.AssertNotCalled(t, "DeliveryStatus", mock.Anything, mock.Anything)
	})
}
