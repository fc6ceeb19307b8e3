// Package alerts de-duplicates provider health alerts. State is keyed by
// service name and lives in an injected store rather than package-level
// maps, so tests construct fresh instances.
package alerts

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StateStore remembers when a service last alerted.
type StateStore interface {
	LastAlertAt(ctx context.Context, service string) (time.Time, bool, error)
	SetLastAlertAt(ctx context.Context, service string, t time.Time) error
	Clear(ctx context.Context, service string) error
}

type Notifier struct {
	store    StateStore
	cooldown time.Duration
	logger   *zap.Logger
}

func NewNotifier(store StateStore, cooldown time.Duration, logger *zap.Logger) *Notifier {
	return &Notifier{store: store, cooldown: cooldown, logger: logger}
}

// ReportFailure raises at most one alert per service per cooldown window.
// Store errors fail open: better a duplicate alert than a missed one.
func (n *Notifier) ReportFailure(ctx context.Context, service, detail string) {
	last, found, err := n.store.LastAlertAt(ctx, service)
	if err != nil {
		n.logger.Warn("alert state lookup failed", zap.String("service", service), zap.Error(err))
	}

	if err == nil && found && time.Since(last) < n.cooldown {
		return
	}

	n.logger.Error("service degraded",
		zap.String("service", service),
		zap.String("detail", detail))

	if err := n.store.SetLastAlertAt(ctx, service, time.Now()); err != nil {
		n.logger.Warn("failed to record alert state", zap.String("service", service), zap.Error(err))
	}
}

// ReportRecovery logs a recovery once for an active alert and clears it.
func (n *Notifier) ReportRecovery(ctx context.Context, service string) {
	_, found, err := n.store.LastAlertAt(ctx, service)
	if err != nil {
		n.logger.Warn("alert state lookup failed", zap.String("service", service), zap.Error(err))
		return
	}

	if !found {
		return
	}

	n.logger.Info("service recovered", zap.String("service", service))

	if err := n.store.Clear(ctx, service); err != nil {
		n.logger.Warn("failed to clear alert state", zap.String("service", service), zap.Error(err))
	}
}
