package service

import (
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
)

type CreateMessageCommand struct {
	Intent         model.MessageIntent
	PickupID       *int64
	HouseholdRef   string
	Destination    string
	Text           string
	IdempotencyKey string
	SendAt         time.Time
}

type PickupDeletedCommand struct {
	PickupID int64
}

type PickupRescheduledCommand struct {
	PickupID    int64
	NewEarliest time.Time
	NewLatest   time.Time
}

type RetryMessageCommand struct {
	MessageID   int64
	RequestedBy string
}

type DismissMessageCommand struct {
	MessageID int64
	By        string
}

type ListFailuresQuery struct {
	Limit  int
	Offset int
}

type RequeueBalanceCommand struct {
	RequestedBy string
}
