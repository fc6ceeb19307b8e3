package model

import "time"

type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "QUEUED"
	MessageStatusSending   MessageStatus = "SENDING"
	MessageStatusRetrying  MessageStatus = "RETRYING"
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusFailed    MessageStatus = "FAILED"
	MessageStatusCancelled MessageStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed || s == MessageStatusCancelled
}

// IsPending reports whether the message can still be cancelled silently,
// i.e. the recipient has not received anything yet.
func (s MessageStatus) IsPending() bool {
	return s == MessageStatusQueued || s == MessageStatusSending || s == MessageStatusRetrying
}

type MessageIntent string

const (
	IntentPickupReminder  MessageIntent = "pickup_reminder"
	IntentPickupUpdated   MessageIntent = "pickup_updated"
	IntentPickupCancelled MessageIntent = "pickup_cancelled"
)

// Delivery confirmation statuses reported asynchronously by the provider.
const (
	ProviderStatusDelivered    = "delivered"
	ProviderStatusFailed       = "failed"
	ProviderStatusNotDelivered = "not delivered"
)

// OutgoingMessage is one row per notification attempt-series. Rows are never
// deleted; anonymization nulls the PII columns and keeps the row for audit.
type OutgoingMessage struct {
	ID                 int64         `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	Intent             MessageIntent `gorm:"column:intent"`
	PickupID           *int64        `gorm:"column:pickup_id;index"`
	HouseholdRef       string        `gorm:"column:household_ref;index"`
	DestinationAddress string        `gorm:"column:destination_address"`
	Text               string        `gorm:"column:text"`
	Status             MessageStatus `gorm:"column:status;index:idx_status_next_attempt"`
	AttemptCount       int           `gorm:"column:attempt_count"`
	NextAttemptAt      *time.Time    `gorm:"column:next_attempt_at;index:idx_status_next_attempt"`
	IdempotencyKey     string        `gorm:"column:idempotency_key;uniqueIndex"`
	ProviderMsgID      *string       `gorm:"column:provider_msg_id"`
	ProviderStatus     *string       `gorm:"column:provider_status"`
	LastErrorMessage   *string       `gorm:"column:last_error_message"`
	BalanceFailure     bool          `gorm:"column:balance_failure"`
	SentAt             *time.Time    `gorm:"column:sent_at"`
	DismissedAt        *time.Time    `gorm:"column:dismissed_at"`
	DismissedBy        *string       `gorm:"column:dismissed_by"`
	CreatedAt          time.Time     `gorm:"column:created_at"`
	UpdatedAt          time.Time     `gorm:"column:updated_at"`
}

func (OutgoingMessage) TableName() string {
	return "outgoing_messages"
}
