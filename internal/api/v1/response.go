package v1

type CreateMessageResponse struct {
	Status    string `json:"status"`
	MessageID int64  `json:"message_id"`
	Duplicate bool   `json:"duplicate"`
}

type RetryMessageResponse struct {
	MessageID int64 `json:"message_id"`
}

type AnonymizeResponse struct {
	Anonymized int64 `json:"anonymized"`
}
