package service

import "github.com/Vasteras-Stadsmission/matkassen-sub010/internal/hours"

type CreateMessageResponse struct {
	MessageID int64 `json:"message_id"`
	Duplicate bool  `json:"duplicate"`
}

type FailureListResponse struct {
	Messages []FailureEntry `json:"messages"`
	Total    int64          `json:"total"`
}

type FailureEntry struct {
	MessageID      int64  `json:"message_id"`
	Intent         string `json:"intent"`
	Destination    string `json:"destination"`
	AttemptCount   int    `json:"attempt_count"`
	LastError      string `json:"last_error,omitempty"`
	BalanceFailure bool   `json:"balance_failure"`
	CreatedAt      string `json:"created_at"`
}

type RequeueBalanceResponse struct {
	Requeued int `json:"requeued"`
	Skipped  int `json:"skipped"`
}

type TickResult struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Retried  int `json:"retried"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

type IssueEntry struct {
	PickupID     int64        `json:"pickup_id"`
	HouseholdRef string       `json:"household_ref"`
	LocationID   int64        `json:"location_id"`
	Earliest     string       `json:"earliest"`
	Latest       string       `json:"latest"`
	Reason       hours.Reason `json:"reason"`
}
