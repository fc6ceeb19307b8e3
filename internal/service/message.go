package service

import (
	"context"
	"errors"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/constants"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/repository"
	"go.uber.org/zap"
)

type MessageService interface {
	// CreateMessage queues a new outbound message. Creation is idempotent on
	// the caller-supplied key: a colliding create is a no-op returning the
	// existing record's id.
	CreateMessage(ctx context.Context, cmd CreateMessageCommand) (CreateMessageResponse, error)

	// AnonymizeHousehold nulls the PII columns of every message belonging to
	// the household but keeps the rows for audit.
	AnonymizeHousehold(ctx context.Context, householdRef string) (int64, error)
}

type message struct {
	messageRepo repository.MessageRepository
	logger      *zap.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, logger *zap.Logger) MessageService {
	return &message{messageRepo: messageRepo, logger: logger}
}

func (m *message) CreateMessage(ctx context.Context, cmd CreateMessageCommand) (CreateMessageResponse, error) {
	// Only cancellation notices outlive their appointment; every other intent
	// must reference the pickup it is about.
	if cmd.PickupID == nil && cmd.Intent != model.IntentPickupCancelled {
		return CreateMessageResponse{}, NewServiceError(constants.ErrCodeInvalidRequestBody,
			errors.New("pickup reference is required for intent "+string(cmd.Intent)))
	}

	sendAt := cmd.SendAt
	if sendAt.IsZero() {
		sendAt = time.Now()
	}

	msg := model.OutgoingMessage{
		Intent:             cmd.Intent,
		PickupID:           cmd.PickupID,
		HouseholdRef:       cmd.HouseholdRef,
		DestinationAddress: cmd.Destination,
		Text:               cmd.Text,
		Status:             model.MessageStatusQueued,
		AttemptCount:       0,
		NextAttemptAt:      &sendAt,
		IdempotencyKey:     cmd.IdempotencyKey,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	err := m.messageRepo.Create(ctx, &msg)
	if err == nil {
		m.logger.Info("message queued",
			zap.Int64("messageID", msg.ID),
			zap.String("intent", string(cmd.Intent)),
			zap.String("idempotencyKey", cmd.IdempotencyKey),
			zap.Time("sendAt", sendAt))
		return CreateMessageResponse{MessageID: msg.ID}, nil
	}

	if errors.Is(err, repository.ErrMessageDuplicate) {
		existing, getErr := m.messageRepo.GetByIdempotencyKey(ctx, cmd.IdempotencyKey)
		if getErr != nil {
			m.logger.Error("duplicate create but existing row not readable",
				zap.String("idempotencyKey", cmd.IdempotencyKey),
				zap.Error(getErr))
			return CreateMessageResponse{}, ErrDatabase
		}

		m.logger.Warn("duplicate message create suppressed",
			zap.Int64("messageID", existing.ID),
			zap.String("idempotencyKey", cmd.IdempotencyKey))
		return CreateMessageResponse{MessageID: existing.ID, Duplicate: true}, nil
	}

	m.logger.Error("failed to create message", zap.Error(err))
	return CreateMessageResponse{}, NewServiceError(ErrCodeDatabase, err)
}

func (m *message) AnonymizeHousehold(ctx context.Context, householdRef string) (int64, error) {
	count, err := m.messageRepo.AnonymizeByHousehold(ctx, householdRef)
	if err != nil {
		m.logger.Error("failed to anonymize messages",
			zap.String("householdRef", householdRef),
			zap.Error(err))
		return 0, ErrDatabase
	}

	m.logger.Info("messages anonymized",
		zap.String("householdRef", householdRef),
		zap.Int64("count", count))

	return count, nil
}
