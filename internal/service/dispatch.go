package service

import (
	"context"
	"errors"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/hours"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/repository"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/smsprovider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const providerServiceName = "sms-provider"

var (
	dispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notify",
			Name:      "dispatch_outcomes_total",
			Help:      "Dispatch attempts by intent and outcome.",
		},
		[]string{"intent", "outcome"},
	)
	staleUnconfirmedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notify",
			Name:      "stale_unconfirmed_total",
			Help:      "Sent messages with no delivery confirmation past the stale threshold.",
		},
	)
)

// HealthReporter receives provider health signals; implementations
// de-duplicate alerts themselves.
type HealthReporter interface {
	ReportFailure(ctx context.Context, service, detail string)
	ReportRecovery(ctx context.Context, service string)
}

type DispatchConfig struct {
	BatchSize        int
	SendTimeout      time.Duration
	ClaimStaleAfter  time.Duration
	ConfirmAfter     time.Duration
	StaleUnconfirmed time.Duration
	ConfirmBatchSize int
}

type DispatchService interface {
	// Tick runs one dispatch cycle: select due messages, filter on operating
	// hours, attempt delivery, persist the resulting transitions. Messages
	// are processed sequentially to keep per-recipient ordering.
	Tick(ctx context.Context) (TickResult, error)

	// ConfirmationPass records asynchronous delivery confirmations for sent
	// messages and flags ones unconfirmed past the stale threshold. It never
	// re-attempts delivery.
	ConfirmationPass(ctx context.Context) error
}

type dispatch struct {
	messageRepo  repository.MessageRepository
	pickupRepo   repository.PickupRepository
	scheduleRepo repository.ScheduleRepository
	provider     smsprovider.Provider
	health       HealthReporter
	cfg          DispatchConfig
	logger       *zap.Logger
}

func NewDispatchService(messageRepo repository.MessageRepository, pickupRepo repository.PickupRepository,
	scheduleRepo repository.ScheduleRepository, provider smsprovider.Provider, health HealthReporter,
	cfg DispatchConfig, logger *zap.Logger) DispatchService {
	return &dispatch{
		messageRepo:  messageRepo,
		pickupRepo:   pickupRepo,
		scheduleRepo: scheduleRepo,
		provider:     provider,
		health:       health,
		cfg:          cfg,
		logger:       logger,
	}
}

func (d *dispatch) Tick(ctx context.Context) (TickResult, error) {
	now := time.Now()
	staleThreshold := now.Add(-d.cfg.ClaimStaleAfter)

	due, err := d.messageRepo.FindDue(ctx, now, staleThreshold, d.cfg.BatchSize)
	if err != nil {
		d.logger.Error("failed to select due messages", zap.Error(err))
		return TickResult{}, ErrDatabase
	}

	result := TickResult{Selected: len(due)}
	if len(due) == 0 {
		return result, nil
	}

	d.logger.Debug("dispatch tick", zap.Int("due", len(due)))

	for _, msg := range due {
		switch d.dispatchOne(ctx, msg, staleThreshold) {
		case outcomeSent:
			result.Sent++
		case outcomeRetried:
			result.Retried++
		case outcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}

	return result, nil
}

type tickOutcome int

const (
	outcomeSkipped tickOutcome = iota
	outcomeSent
	outcomeRetried
	outcomeFailed
)

func (d *dispatch) dispatchOne(ctx context.Context, msg model.OutgoingMessage, staleThreshold time.Time) tickOutcome {
	if !d.eligible(ctx, msg) {
		dispatchOutcomes.WithLabelValues(string(msg.Intent), "skipped_outside_hours").Inc()

		// A stale-reclaimed row must not sit in SENDING until hours open
		// again; hand it back to the queue.
		if msg.Status == model.MessageStatusSending {
			err := d.messageRepo.ReleaseClaim(ctx, msg.ID, staleThreshold)
			if err != nil && !errors.Is(err, repository.ErrNoRowsAffected) {
				d.logger.Error("failed to release stale claim",
					zap.Int64("messageID", msg.ID),
					zap.Error(err))
			}
		}

		return outcomeSkipped
	}

	err := d.messageRepo.ClaimForSending(ctx, msg.ID, staleThreshold)
	if err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			// Claimed elsewhere or cancelled since selection.
			d.logger.Debug("message no longer claimable", zap.Int64("messageID", msg.ID))
			return outcomeSkipped
		}

		d.logger.Error("failed to claim message",
			zap.Int64("messageID", msg.ID),
			zap.Error(err))
		return outcomeSkipped
	}

	d.logger.Debug("attempting delivery",
		zap.Int64("messageID", msg.ID),
		zap.String("intent", string(msg.Intent)),
		zap.Int("attempt", msg.AttemptCount+1))

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	outcome := d.provider.Send(sendCtx, msg.DestinationAddress, msg.Text)
	cancel()

	// Cancellation always wins: the appointment may have gone away while
	// the provider call was in flight, in which case the result is
	// discarded without touching the row.
	current, err := d.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		d.logger.Error("failed to re-read message after provider call, leaving claim to go stale",
			zap.Int64("messageID", msg.ID),
			zap.Error(err))
		return outcomeSkipped
	}

	if current.Status == model.MessageStatusCancelled {
		d.logger.Info("message cancelled mid-flight, provider result discarded",
			zap.Int64("messageID", msg.ID),
			zap.String("providerOutcome", outcome.Kind.String()))
		return outcomeSkipped
	}

	return d.applyOutcome(ctx, msg, outcome)
}

func (d *dispatch) applyOutcome(ctx context.Context, msg model.OutgoingMessage, outcome smsprovider.Outcome) tickOutcome {
	dispatchOutcomes.WithLabelValues(string(msg.Intent), outcome.Kind.String()).Inc()

	attemptsBefore := msg.AttemptCount

	switch outcome.Kind {
	case smsprovider.OutcomeDelivered:
		if err := d.markStored(d.messageRepo.MarkSent(ctx, msg.ID, outcome.ProviderMsgID, time.Now()), msg.ID, "sent"); err != nil {
			return outcomeSkipped
		}
		d.health.ReportRecovery(ctx, providerServiceName)
		d.logger.Info("message sent",
			zap.Int64("messageID", msg.ID),
			zap.String("providerMessageID", outcome.ProviderMsgID),
			zap.Int("attempt", attemptsBefore+1))
		return outcomeSent

	case smsprovider.OutcomeRetriable:
		d.health.ReportFailure(ctx, providerServiceName, outcome.ErrorText())

		lastErr := RedactPhoneNumbers(outcome.ErrorText())
		decision := DecideRetry(attemptsBefore, outcome.Kind)
		if decision.Retry {
			next := time.Now().Add(decision.Delay)
			if err := d.markStored(d.messageRepo.MarkRetrying(ctx, msg.ID, next, lastErr), msg.ID, "retrying"); err != nil {
				return outcomeSkipped
			}
			d.logger.Warn("delivery failed, retry scheduled",
				zap.Int64("messageID", msg.ID),
				zap.Int("attempt", attemptsBefore+1),
				zap.Time("nextAttemptAt", next),
				zap.String("lastError", lastErr))
			return outcomeRetried
		}

		if err := d.markStored(d.messageRepo.MarkFailed(ctx, msg.ID, lastErr, false), msg.ID, "failed"); err != nil {
			return outcomeSkipped
		}
		d.logger.Error("delivery failed permanently, attempts exhausted",
			zap.Int64("messageID", msg.ID),
			zap.Int("attempts", attemptsBefore+1),
			zap.String("lastError", lastErr))
		return outcomeFailed

	case smsprovider.OutcomeBalanceExhausted:
		d.health.ReportFailure(ctx, providerServiceName, "balance exhausted")

		if err := d.markStored(d.messageRepo.MarkFailed(ctx, msg.ID, outcome.ErrorText(), true), msg.ID, "failed"); err != nil {
			return outcomeSkipped
		}
		d.logger.Error("delivery failed, provider balance exhausted",
			zap.Int64("messageID", msg.ID))
		return outcomeFailed

	default: // permanent
		lastErr := RedactPhoneNumbers(outcome.ErrorText())
		if err := d.markStored(d.messageRepo.MarkFailed(ctx, msg.ID, lastErr, false), msg.ID, "failed"); err != nil {
			return outcomeSkipped
		}
		d.logger.Error("delivery rejected by provider",
			zap.Int64("messageID", msg.ID),
			zap.String("lastError", lastErr))
		return outcomeFailed
	}
}

// markStored funnels the write-back result. ErrNoRowsAffected means the row
// left SENDING while the call was in flight (a cancellation won); any other
// error leaves the claim to go stale and be retried next tick.
func (d *dispatch) markStored(err error, messageID int64, target string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, repository.ErrNoRowsAffected) {
		d.logger.Info("transition lost to a concurrent writer, result discarded",
			zap.Int64("messageID", messageID),
			zap.String("target", target))
		return err
	}

	d.logger.Error("failed to persist transition",
		zap.Int64("messageID", messageID),
		zap.String("target", target),
		zap.Error(err))
	return err
}

// eligible applies the operating-hours gate. Every internal error fails
// open: a wrongly sent reminder beats a silently dropped one.
func (d *dispatch) eligible(ctx context.Context, msg model.OutgoingMessage) bool {
	if msg.PickupID == nil {
		// Cancellation notices have no appointment to gate on.
		return true
	}

	pickup, err := d.pickupRepo.GetByID(ctx, *msg.PickupID)
	if err != nil {
		d.logger.Warn("eligibility check could not load pickup, failing open",
			zap.Int64("messageID", msg.ID),
			zap.Int64("pickupID", *msg.PickupID),
			zap.Error(err))
		return true
	}

	schedules, err := d.scheduleRepo.FindByLocation(ctx, pickup.LocationID)
	if err != nil {
		d.logger.Warn("eligibility check could not load schedules, failing open",
			zap.Int64("messageID", msg.ID),
			zap.Int64("locationID", pickup.LocationID),
			zap.Error(err))
		return true
	}

	decision := hours.Check(pickup.Earliest, pickup.Latest, schedules)
	if !decision.Eligible {
		d.logger.Info("message outside operating hours, left queued",
			zap.Int64("messageID", msg.ID),
			zap.Int64("pickupID", pickup.ID),
			zap.String("reason", string(decision.Reason)))
	}

	return decision.Eligible
}

func (d *dispatch) ConfirmationPass(ctx context.Context) error {
	cutoff := time.Now().Add(-d.cfg.ConfirmAfter)

	unconfirmed, err := d.messageRepo.FindUnconfirmedSent(ctx, cutoff, d.cfg.ConfirmBatchSize)
	if err != nil {
		d.logger.Error("failed to select unconfirmed messages", zap.Error(err))
		return ErrDatabase
	}

	staleCutoff := time.Now().Add(-d.cfg.StaleUnconfirmed)

	for _, msg := range unconfirmed {
		if msg.ProviderMsgID == nil {
			continue
		}

		statusCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		status, err := d.provider.DeliveryStatus(statusCtx, *msg.ProviderMsgID)
		cancel()

		if err != nil {
			d.logger.Warn("delivery status lookup failed",
				zap.Int64("messageID", msg.ID),
				zap.Error(err))

			// Stale-unconfirmed is reported, never re-attempted: the
			// message may well have been delivered.
			if msg.SentAt != nil && msg.SentAt.Before(staleCutoff) {
				staleUnconfirmedTotal.Inc()
				d.logger.Error("message unconfirmed past stale threshold",
					zap.Int64("messageID", msg.ID),
					zap.Time("sentAt", *msg.SentAt))
			}
			continue
		}

		if err := d.messageRepo.SetProviderStatus(ctx, msg.ID, status); err != nil {
			d.logger.Error("failed to record provider status",
				zap.Int64("messageID", msg.ID),
				zap.Error(err))
			continue
		}

		d.logger.Debug("delivery confirmation recorded",
			zap.Int64("messageID", msg.ID),
			zap.String("providerStatus", status))
	}

	return nil
}
