package service

import (
	"context"
	"errors"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/constants"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/hours"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// How far ahead the issues view scans for mis-scheduled pickups.
const issuesHorizon = 14 * 24 * time.Hour

type AdminConfig struct {
	RetryCooldown time.Duration
	MinLeadTime   time.Duration
}

// AdminService is the operator surface: inspect failures, requeue, dismiss.
type AdminService interface {
	ListFailures(ctx context.Context, query ListFailuresQuery) (FailureListResponse, error)

	// RetryMessage queues a fresh copy of a failed message under a new
	// idempotency key and dismisses the original. Guarded by a cooldown and
	// a minimum lead time before the pickup.
	RetryMessage(ctx context.Context, cmd RetryMessageCommand) (CreateMessageResponse, error)

	Dismiss(ctx context.Context, cmd DismissMessageCommand) error
	Restore(ctx context.Context, messageID int64) error

	// RequeueBalanceFailures bulk-requeues every balance-exhausted failure,
	// for use after the provider account has been topped up.
	RequeueBalanceFailures(ctx context.Context, cmd RequeueBalanceCommand) (RequeueBalanceResponse, error)

	// Issues lists upcoming pickups whose window falls outside their
	// location's operating hours, using the same check as the dispatcher.
	Issues(ctx context.Context) ([]IssueEntry, error)
}

type admin struct {
	messageRepo  repository.MessageRepository
	pickupRepo   repository.PickupRepository
	scheduleRepo repository.ScheduleRepository
	txManager    repository.TxManager
	cfg          AdminConfig
	logger       *zap.Logger
}

func NewAdminService(messageRepo repository.MessageRepository, pickupRepo repository.PickupRepository,
	scheduleRepo repository.ScheduleRepository, txManager repository.TxManager,
	cfg AdminConfig, logger *zap.Logger) AdminService {
	return &admin{
		messageRepo:  messageRepo,
		pickupRepo:   pickupRepo,
		scheduleRepo: scheduleRepo,
		txManager:    txManager,
		cfg:          cfg,
		logger:       logger,
	}
}

func (a *admin) ListFailures(ctx context.Context, query ListFailuresQuery) (FailureListResponse, error) {
	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	messages, total, err := a.messageRepo.ListFailures(ctx, limit, query.Offset)
	if err != nil {
		a.logger.Error("failed to list failures", zap.Error(err))
		return FailureListResponse{}, NewServiceError(ErrCodeDatabase, err)
	}

	entries := make([]FailureEntry, 0, len(messages))
	for _, msg := range messages {
		entry := FailureEntry{
			MessageID:      msg.ID,
			Intent:         string(msg.Intent),
			Destination:    msg.DestinationAddress,
			AttemptCount:   msg.AttemptCount,
			BalanceFailure: msg.BalanceFailure,
			CreatedAt:      msg.CreatedAt.Format(time.RFC3339),
		}
		if msg.LastErrorMessage != nil {
			entry.LastError = *msg.LastErrorMessage
		}
		entries = append(entries, entry)
	}

	return FailureListResponse{Messages: entries, Total: total}, nil
}

func (a *admin) RetryMessage(ctx context.Context, cmd RetryMessageCommand) (CreateMessageResponse, error) {
	msg, err := a.messageRepo.GetByID(ctx, cmd.MessageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return CreateMessageResponse{}, NewServiceError(constants.ErrCodeNotFound, err)
		}
		return CreateMessageResponse{}, NewServiceError(ErrCodeDatabase, err)
	}

	if msg.Status != model.MessageStatusFailed || msg.DismissedAt != nil {
		return CreateMessageResponse{}, NewServiceError(constants.ErrCodeInvalidAction,
			errors.New("only visible failed messages can be retried"))
	}

	if time.Since(msg.UpdatedAt) < a.cfg.RetryCooldown {
		return CreateMessageResponse{}, NewServiceError(constants.ErrCodeCooldownActive,
			errors.New("retry cooldown has not elapsed"))
	}

	if msg.PickupID != nil {
		pickup, err := a.pickupRepo.GetByID(ctx, *msg.PickupID)
		if err != nil {
			if errors.Is(err, repository.ErrPickupNotFound) {
				return CreateMessageResponse{}, NewServiceError(constants.ErrCodeParcelNotFound, err)
			}
			return CreateMessageResponse{}, NewServiceError(ErrCodeDatabase, err)
		}

		if time.Now().After(pickup.Earliest.Add(-a.cfg.MinLeadTime)) {
			return CreateMessageResponse{}, NewServiceError(constants.ErrCodeTooLate,
				errors.New("pickup is too close or already past"))
		}
	}

	var resp CreateMessageResponse
	err = a.txManager.WithTx(ctx, func(ctx context.Context) error {
		requeued, err := a.requeueCopy(ctx, msg)
		if err != nil {
			return err
		}

		if err := a.messageRepo.SetDismissed(ctx, msg.ID, cmd.RequestedBy, time.Now()); err != nil {
			return NewServiceError(ErrCodeDatabase, err)
		}

		resp = CreateMessageResponse{MessageID: requeued.ID}
		return nil
	})
	if err != nil {
		return CreateMessageResponse{}, err
	}

	a.logger.Info("message requeued by operator",
		zap.Int64("originalMessageID", cmd.MessageID),
		zap.Int64("messageID", resp.MessageID),
		zap.String("requestedBy", cmd.RequestedBy))

	return resp, nil
}

func (a *admin) Dismiss(ctx context.Context, cmd DismissMessageCommand) error {
	err := a.messageRepo.SetDismissed(ctx, cmd.MessageID, cmd.By, time.Now())
	if err == nil {
		a.logger.Info("message dismissed",
			zap.Int64("messageID", cmd.MessageID),
			zap.String("by", cmd.By))
		return nil
	}

	if errors.Is(err, repository.ErrNoRowsAffected) {
		// Either the id is unknown or the status admits no dismissal;
		// disambiguate for the operator.
		if _, getErr := a.messageRepo.GetByID(ctx, cmd.MessageID); errors.Is(getErr, repository.ErrMessageNotFound) {
			return NewServiceError(constants.ErrCodeNotFound, getErr)
		}
		return NewServiceError(constants.ErrCodeInvalidAction, err)
	}

	return NewServiceError(ErrCodeDatabase, err)
}

func (a *admin) Restore(ctx context.Context, messageID int64) error {
	err := a.messageRepo.ClearDismissed(ctx, messageID)
	if err == nil {
		a.logger.Info("message restored", zap.Int64("messageID", messageID))
		return nil
	}

	if errors.Is(err, repository.ErrNoRowsAffected) {
		if _, getErr := a.messageRepo.GetByID(ctx, messageID); errors.Is(getErr, repository.ErrMessageNotFound) {
			return NewServiceError(constants.ErrCodeNotFound, getErr)
		}
		return NewServiceError(constants.ErrCodeInvalidAction, err)
	}

	return NewServiceError(ErrCodeDatabase, err)
}

func (a *admin) RequeueBalanceFailures(ctx context.Context, cmd RequeueBalanceCommand) (RequeueBalanceResponse, error) {
	failures, err := a.messageRepo.FindBalanceFailures(ctx)
	if err != nil {
		a.logger.Error("failed to list balance failures", zap.Error(err))
		return RequeueBalanceResponse{}, NewServiceError(ErrCodeDatabase, err)
	}

	var resp RequeueBalanceResponse
	for _, msg := range failures {
		if a.pickupPassed(ctx, msg) {
			resp.Skipped++
			continue
		}

		msg := msg
		err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
			if _, err := a.requeueCopy(ctx, &msg); err != nil {
				return err
			}
			return a.messageRepo.SetDismissed(ctx, msg.ID, cmd.RequestedBy, time.Now())
		})
		if err != nil {
			a.logger.Error("failed to requeue balance failure",
				zap.Int64("messageID", msg.ID),
				zap.Error(err))
			resp.Skipped++
			continue
		}

		resp.Requeued++
	}

	a.logger.Info("balance failures requeued",
		zap.Int("requeued", resp.Requeued),
		zap.Int("skipped", resp.Skipped),
		zap.String("requestedBy", cmd.RequestedBy))

	return resp, nil
}

func (a *admin) Issues(ctx context.Context) ([]IssueEntry, error) {
	now := time.Now()
	pickups, err := a.pickupRepo.FindUpcoming(ctx, now, now.Add(issuesHorizon))
	if err != nil {
		a.logger.Error("failed to list upcoming pickups", zap.Error(err))
		return nil, NewServiceError(ErrCodeDatabase, err)
	}

	var issues []IssueEntry
	for _, pickup := range pickups {
		schedules, err := a.scheduleRepo.FindByLocation(ctx, pickup.LocationID)
		if err != nil {
			// Same fail-open stance as the dispatcher: a lookup error never
			// flags a pickup as mis-scheduled.
			a.logger.Warn("schedule lookup failed for issues view",
				zap.Int64("locationID", pickup.LocationID),
				zap.Error(err))
			continue
		}

		decision := hours.Check(pickup.Earliest, pickup.Latest, schedules)
		if decision.Eligible {
			continue
		}

		issues = append(issues, IssueEntry{
			PickupID:     pickup.ID,
			HouseholdRef: pickup.HouseholdRef,
			LocationID:   pickup.LocationID,
			Earliest:     pickup.Earliest.Format(time.RFC3339),
			Latest:       pickup.Latest.Format(time.RFC3339),
			Reason:       decision.Reason,
		})
	}

	return issues, nil
}

// requeueCopy inserts a fresh queued copy of msg with a new idempotency key.
func (a *admin) requeueCopy(ctx context.Context, msg *model.OutgoingMessage) (*model.OutgoingMessage, error) {
	now := time.Now()
	clone := model.OutgoingMessage{
		Intent:             msg.Intent,
		PickupID:           msg.PickupID,
		HouseholdRef:       msg.HouseholdRef,
		DestinationAddress: msg.DestinationAddress,
		Text:               msg.Text,
		Status:             model.MessageStatusQueued,
		NextAttemptAt:      &now,
		IdempotencyKey:     "requeue-" + uuid.NewString(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := a.messageRepo.Create(ctx, &clone); err != nil {
		return nil, NewServiceError(ErrCodeDatabase, err)
	}

	return &clone, nil
}

func (a *admin) pickupPassed(ctx context.Context, msg model.OutgoingMessage) bool {
	if msg.PickupID == nil {
		return false
	}

	pickup, err := a.pickupRepo.GetByID(ctx, *msg.PickupID)
	if err != nil {
		return false
	}

	return time.Now().After(pickup.Earliest.Add(-a.cfg.MinLeadTime))
}
