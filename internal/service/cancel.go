package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/repository"
	"go.uber.org/zap"
)

// Fallback body used when the renderer cannot produce a cancellation text; a
// late or plain notice beats no notice.
const fallbackCancelledText = "Your food parcel pickup has been cancelled. Please contact us for a new time."

// CancelService reacts to appointment lifecycle changes. Every method must
// run inside a transaction opened by the caller (the tx travels in the ctx):
// the service never opens its own, so "pickup deleted" and "reminder
// cancelled" commit atomically.
type CancelService interface {
	// CancelForPickup cancels pending messages of the pickup and, when a
	// reminder already reached the recipient, queues exactly one immediate
	// cancellation notice. Idempotent per pickup, not per message.
	CancelForPickup(ctx context.Context, pickup *model.Pickup) error

	// NotifyReschedule cancels pending messages of the pickup and queues one
	// immediate notice carrying the new window.
	NotifyReschedule(ctx context.Context, pickup *model.Pickup, newEarliest, newLatest time.Time) error
}

type cancel struct {
	messageRepo repository.MessageRepository
	renderer    Renderer
	logger      *zap.Logger
}

func NewCancelService(messageRepo repository.MessageRepository, renderer Renderer, logger *zap.Logger) CancelService {
	return &cancel{messageRepo: messageRepo, renderer: renderer, logger: logger}
}

func (c *cancel) CancelForPickup(ctx context.Context, pickup *model.Pickup) error {
	messages, err := c.messageRepo.FindByPickup(ctx, pickup.ID)
	if err != nil {
		c.logger.Error("failed to load messages for pickup",
			zap.Int64("pickupID", pickup.ID),
			zap.Error(err))
		return NewServiceError(ErrCodeDatabase, err)
	}

	anySent := false
	for _, msg := range messages {
		switch {
		case msg.Status.IsPending():
			if err := c.cancelMessage(ctx, msg.ID, pickup.ID); err != nil {
				return err
			}
		case msg.Status == model.MessageStatusSent:
			anySent = true
		}
		// failed and cancelled rows need no action
	}

	if !anySent {
		return nil
	}

	return c.queueNotice(ctx, pickup, model.IntentPickupCancelled,
		fmt.Sprintf("pickup-cancelled-%d", pickup.ID),
		pickup.Earliest, pickup.Latest, messages)
}

func (c *cancel) NotifyReschedule(ctx context.Context, pickup *model.Pickup, newEarliest, newLatest time.Time) error {
	messages, err := c.messageRepo.FindByPickup(ctx, pickup.ID)
	if err != nil {
		c.logger.Error("failed to load messages for pickup",
			zap.Int64("pickupID", pickup.ID),
			zap.Error(err))
		return NewServiceError(ErrCodeDatabase, err)
	}

	for _, msg := range messages {
		if msg.Status.IsPending() {
			if err := c.cancelMessage(ctx, msg.ID, pickup.ID); err != nil {
				return err
			}
		}
	}

	// The key carries the new time so a pickup rescheduled twice produces a
	// notice for each change, while the event itself stays replay-safe.
	key := fmt.Sprintf("pickup-updated-%d-%d", pickup.ID, newEarliest.Unix())

	return c.queueNotice(ctx, pickup, model.IntentPickupUpdated, key, newEarliest, newLatest, messages)
}

func (c *cancel) cancelMessage(ctx context.Context, messageID, pickupID int64) error {
	err := c.messageRepo.Cancel(ctx, messageID)
	if err == nil {
		c.logger.Info("message cancelled",
			zap.Int64("messageID", messageID),
			zap.Int64("pickupID", pickupID))
		return nil
	}

	// Lost the race against a concurrent terminal transition; the loop saw a
	// stale status and the row is already settled.
	if errors.Is(err, repository.ErrNoRowsAffected) {
		c.logger.Info("message no longer cancellable",
			zap.Int64("messageID", messageID),
			zap.Int64("pickupID", pickupID))
		return nil
	}

	c.logger.Error("failed to cancel message",
		zap.Int64("messageID", messageID),
		zap.Error(err))
	return NewServiceError(ErrCodeDatabase, err)
}

func (c *cancel) queueNotice(ctx context.Context, pickup *model.Pickup, intent model.MessageIntent,
	idempotencyKey string, earliest, latest time.Time, history []model.OutgoingMessage) error {

	destination := latestDestination(history)
	if destination == "" {
		c.logger.Warn("no destination known for pickup, notice skipped",
			zap.Int64("pickupID", pickup.ID),
			zap.String("intent", string(intent)))
		return nil
	}

	text, err := c.renderer.Render(intent, pickup.Locale, earliest, latest)
	if err != nil {
		c.logger.Warn("notice render failed, using fallback text",
			zap.Int64("pickupID", pickup.ID),
			zap.String("intent", string(intent)),
			zap.Error(err))
		text = fallbackCancelledText
	}

	now := time.Now()
	msg := model.OutgoingMessage{
		Intent:             intent,
		HouseholdRef:       pickup.HouseholdRef,
		DestinationAddress: destination,
		Text:               text,
		Status:             model.MessageStatusQueued,
		NextAttemptAt:      &now,
		IdempotencyKey:     idempotencyKey,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// A cancellation notice outlives its appointment, so it carries no
	// pickup reference. Updated notices keep theirs.
	if intent == model.IntentPickupUpdated {
		pickupID := pickup.ID
		msg.PickupID = &pickupID
	}

	err = c.messageRepo.Create(ctx, &msg)
	if err == nil {
		c.logger.Info("notice queued",
			zap.Int64("messageID", msg.ID),
			zap.Int64("pickupID", pickup.ID),
			zap.String("intent", string(intent)))
		return nil
	}

	if errors.Is(err, repository.ErrMessageDuplicate) {
		c.logger.Info("notice already queued for pickup",
			zap.Int64("pickupID", pickup.ID),
			zap.String("intent", string(intent)))
		return nil
	}

	c.logger.Error("failed to queue notice",
		zap.Int64("pickupID", pickup.ID),
		zap.Error(err))
	return NewServiceError(ErrCodeDatabase, err)
}

// latestDestination takes the destination of the newest message that still
// carries one. FindByPickup returns newest-first.
func latestDestination(history []model.OutgoingMessage) string {
	for _, msg := range history {
		if msg.DestinationAddress != "" {
			return msg.DestinationAddress
		}
	}
	return ""
}
