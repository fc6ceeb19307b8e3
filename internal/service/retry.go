package service

import (
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/smsprovider"
)

// MaxAttempts caps the total delivery attempts for one message.
const MaxAttempts = 3

// The first retry is tight to catch short provider blips; later retries back
// off to a flat half hour to avoid hammering a degraded provider. Outages the
// provider has shown are typically short, so the schedule is flat rather
// than exponential.
const (
	firstRetryDelay = 5 * time.Minute
	laterRetryDelay = 30 * time.Minute
)

type RetryDecision struct {
	Retry bool
	Delay time.Duration
}

// DecideRetry is the pure retry policy. attemptCount is the number of
// attempts made before the one that just failed: 0 means the first attempt
// failed. Only retriable outcomes ever retry; permanent and balance-exhausted
// failures go straight to failed regardless of remaining attempts.
func DecideRetry(attemptCount int, kind smsprovider.OutcomeKind) RetryDecision {
	if kind != smsprovider.OutcomeRetriable {
		return RetryDecision{}
	}

	if attemptCount >= MaxAttempts-1 {
		return RetryDecision{}
	}

	if attemptCount == 0 {
		return RetryDecision{Retry: true, Delay: firstRetryDelay}
	}

	return RetryDecision{Retry: true, Delay: laterRetryDelay}
}
