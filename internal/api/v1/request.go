package v1

type CreateMessageRequest struct {
	Intent         string `json:"intent" validate:"required,oneof=pickup_reminder pickup_updated pickup_cancelled"`
	PickupID       *int64 `json:"pickup_id" validate:"required_unless=Intent pickup_cancelled"`
	HouseholdRef   string `json:"household_ref" validate:"required"`
	Destination    string `json:"destination" validate:"required,e164"`
	Text           string `json:"text" validate:"required,max=320"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=128"`
	SendAt         string `json:"send_at" validate:"omitempty"` // RFC 3339; empty means now
}

type PickupDeletedRequest struct {
	PickupID int64 `json:"pickup_id" validate:"required"`
}

type PickupRescheduledRequest struct {
	PickupID    int64  `json:"pickup_id" validate:"required"`
	NewEarliest string `json:"new_earliest" validate:"required"`
	NewLatest   string `json:"new_latest" validate:"required"`
}

type RetryMessageRequest struct {
	RequestedBy string `json:"requested_by" validate:"required"`
}

type DismissMessageRequest struct {
	By string `json:"by" validate:"required"`
}

type RequeueBalanceRequest struct {
	RequestedBy string `json:"requested_by" validate:"required"`
}

type AnonymizeRequest struct {
	HouseholdRef string `json:"household_ref" validate:"required"`
}
