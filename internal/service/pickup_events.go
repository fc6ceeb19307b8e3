package service

import (
	"context"
	"errors"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/constants"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/repository"
	"go.uber.org/zap"
)

// PickupEventService handles appointment lifecycle events from the
// scheduling domain. Each event mutates the pickup and its messages in one
// transaction, composing the tx-scoped CancelService.
type PickupEventService interface {
	PickupDeleted(ctx context.Context, cmd PickupDeletedCommand) error
	PickupRescheduled(ctx context.Context, cmd PickupRescheduledCommand) error
}

type pickupEvents struct {
	pickupRepo repository.PickupRepository
	cancelSvc  CancelService
	txManager  repository.TxManager
	logger     *zap.Logger
}

func NewPickupEventService(pickupRepo repository.PickupRepository, cancelSvc CancelService,
	txManager repository.TxManager, logger *zap.Logger) PickupEventService {
	return &pickupEvents{pickupRepo: pickupRepo, cancelSvc: cancelSvc, txManager: txManager, logger: logger}
}

func (p *pickupEvents) PickupDeleted(ctx context.Context, cmd PickupDeletedCommand) error {
	return p.txManager.WithTx(ctx, func(ctx context.Context) error {
		pickup, err := p.pickupRepo.GetByID(ctx, cmd.PickupID)
		if err != nil {
			if errors.Is(err, repository.ErrPickupNotFound) {
				return NewServiceError(constants.ErrCodeParcelNotFound, err)
			}
			return NewServiceError(ErrCodeDatabase, err)
		}

		err = p.pickupRepo.SoftDelete(ctx, cmd.PickupID)
		if err != nil && !errors.Is(err, repository.ErrNoRowsAffected) {
			p.logger.Error("failed to soft-delete pickup",
				zap.Int64("pickupID", cmd.PickupID),
				zap.Error(err))
			return NewServiceError(ErrCodeDatabase, err)
		}

		// A replayed delete event still runs the handler; it is idempotent.
		return p.cancelSvc.CancelForPickup(ctx, pickup)
	})
}

func (p *pickupEvents) PickupRescheduled(ctx context.Context, cmd PickupRescheduledCommand) error {
	return p.txManager.WithTx(ctx, func(ctx context.Context) error {
		pickup, err := p.pickupRepo.GetByID(ctx, cmd.PickupID)
		if err != nil {
			if errors.Is(err, repository.ErrPickupNotFound) {
				return NewServiceError(constants.ErrCodeParcelNotFound, err)
			}
			return NewServiceError(ErrCodeDatabase, err)
		}

		if err := p.pickupRepo.UpdateWindow(ctx, cmd.PickupID, cmd.NewEarliest, cmd.NewLatest); err != nil {
			if errors.Is(err, repository.ErrNoRowsAffected) {
				return NewServiceError(constants.ErrCodeParcelNotFound, err)
			}
			p.logger.Error("failed to update pickup window",
				zap.Int64("pickupID", cmd.PickupID),
				zap.Error(err))
			return NewServiceError(ErrCodeDatabase, err)
		}

		return p.cancelSvc.NotifyReschedule(ctx, pickup, cmd.NewEarliest, cmd.NewLatest)
	})
}
