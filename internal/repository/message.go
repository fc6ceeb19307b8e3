package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrMessageNotFound = errors.New("MESSAGE_NOT_FOUND")
var ErrMessageDuplicate = errors.New("MESSAGE_DUPLICATE")
var ErrNoRowsAffected = errors.New("NO_ROWS_AFFECTED")

type MessageRepository interface {
	Create(ctx context.Context, message *model.OutgoingMessage) error
	GetByID(ctx context.Context, id int64) (*model.OutgoingMessage, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.OutgoingMessage, error)

	// FindDue returns messages ready for a dispatch attempt: queued or
	// retrying with next_attempt_at reached, plus sending rows whose claim
	// went stale (the claiming process died mid-attempt).
	FindDue(ctx context.Context, now time.Time, staleThreshold time.Time, limit int) ([]model.OutgoingMessage, error)

	// ClaimForSending moves one due message to SENDING and increments its
	// attempt count. Returns ErrNoRowsAffected when the row was already
	// claimed, cancelled, or otherwise no longer due.
	ClaimForSending(ctx context.Context, id int64, staleThreshold time.Time) error

	// ReleaseClaim returns a stale SENDING row to QUEUED without touching its
	// attempt count. Guarded by the stale threshold so an active claim held by
	// a live process is never released.
	ReleaseClaim(ctx context.Context, id int64, staleThreshold time.Time) error

	MarkSent(ctx context.Context, id int64, providerMsgID string, sentAt time.Time) error
	MarkRetrying(ctx context.Context, id int64, nextAttemptAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id int64, lastError string, balanceFailure bool) error
	Cancel(ctx context.Context, id int64) error

	FindByPickup(ctx context.Context, pickupID int64) ([]model.OutgoingMessage, error)

	ListFailures(ctx context.Context, limit, offset int) ([]model.OutgoingMessage, int64, error)
	FindBalanceFailures(ctx context.Context) ([]model.OutgoingMessage, error)
	SetDismissed(ctx context.Context, id int64, by string, at time.Time) error
	ClearDismissed(ctx context.Context, id int64) error

	FindUnconfirmedSent(ctx context.Context, sentBefore time.Time, limit int) ([]model.OutgoingMessage, error)
	SetProviderStatus(ctx context.Context, id int64, status string) error

	AnonymizeByHousehold(ctx context.Context, householdRef string) (int64, error)
}

type Message struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &Message{db: db}
}

func (m *Message) Create(ctx context.Context, message *model.OutgoingMessage) error {
	db := GetTx(ctx, m.db)
	err := db.Create(message).Error
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrMessageDuplicate
	}

	return err
}

func (m *Message) GetByID(ctx context.Context, id int64) (*model.OutgoingMessage, error) {
	db := GetTx(ctx, m.db)

	var message model.OutgoingMessage
	err := db.Where("id = ?", id).First(&message).Error
	if err == nil {
		return &message, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}

	return nil, err
}

func (m *Message) GetByIdempotencyKey(ctx context.Context, key string) (*model.OutgoingMessage, error) {
	db := GetTx(ctx, m.db)

	var message model.OutgoingMessage
	err := db.Where("idempotency_key = ?", key).First(&message).Error
	if err == nil {
		return &message, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}

	return nil, err
}

func (m *Message) FindDue(ctx context.Context, now time.Time, staleThreshold time.Time, limit int) ([]model.OutgoingMessage, error) {
	var messages []model.OutgoingMessage

	err := m.db.
		Where("(status IN (?, ?) AND next_attempt_at <= ?) OR (status = ? AND updated_at < ?)",
			model.MessageStatusQueued, model.MessageStatusRetrying, now,
			model.MessageStatusSending, staleThreshold).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (m *Message) ClaimForSending(ctx context.Context, id int64, staleThreshold time.Time) error {
	db := GetTx(ctx, m.db)

	now := time.Now()
	result := db.Model(&model.OutgoingMessage{}).
		Where("id = ? AND (status IN (?, ?) OR (status = ? AND updated_at < ?))",
			id,
			model.MessageStatusQueued, model.MessageStatusRetrying,
			model.MessageStatusSending, staleThreshold).
		Updates(map[string]interface{}{
			"status":        model.MessageStatusSending,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (m *Message) ReleaseClaim(ctx context.Context, id int64, staleThreshold time.Time) error {
	db := GetTx(ctx, m.db)

	result := db.Model(&model.OutgoingMessage{}).
		Where("id = ? AND status = ? AND updated_at < ?",
			id, model.MessageStatusSending, staleThreshold).
		Updates(map[string]interface{}{
			"status":     model.MessageStatusQueued,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (m *Message) MarkSent(ctx context.Context, id int64, providerMsgID string, sentAt time.Time) error {
	return m.transition(ctx, id, model.MessageStatusSending, map[string]interface{}{
		"status":          model.MessageStatusSent,
		"provider_msg_id": providerMsgID,
		"sent_at":         sentAt,
		"next_attempt_at": nil,
		"updated_at":      time.Now(),
	})
}

func (m *Message) MarkRetrying(ctx context.Context, id int64, nextAttemptAt time.Time, lastError string) error {
	return m.transition(ctx, id, model.MessageStatusSending, map[string]interface{}{
		"status":             model.MessageStatusRetrying,
		"next_attempt_at":    nextAttemptAt,
		"last_error_message": lastError,
		"updated_at":         time.Now(),
	})
}

func (m *Message) MarkFailed(ctx context.Context, id int64, lastError string, balanceFailure bool) error {
	return m.transition(ctx, id, model.MessageStatusSending, map[string]interface{}{
		"status":             model.MessageStatusFailed,
		"next_attempt_at":    nil,
		"last_error_message": lastError,
		"balance_failure":    balanceFailure,
		"updated_at":         time.Now(),
	})
}

// transition applies a guarded status update; the from-status guard is the
// storage-layer second line of defense for the state machine.
func (m *Message) transition(ctx context.Context, id int64, from model.MessageStatus, values map[string]interface{}) error {
	db := GetTx(ctx, m.db)

	result := db.Model(&model.OutgoingMessage{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (m *Message) Cancel(ctx context.Context, id int64) error {
	db := GetTx(ctx, m.db)

	result := db.Model(&model.OutgoingMessage{}).
		Where("id = ? AND status IN (?, ?, ?)", id,
			model.MessageStatusQueued, model.MessageStatusSending, model.MessageStatusRetrying).
		Updates(map[string]interface{}{
			"status":          model.MessageStatusCancelled,
			"next_attempt_at": nil,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (m *Message) FindByPickup(ctx context.Context, pickupID int64) ([]model.OutgoingMessage, error) {
	db := GetTx(ctx, m.db)

	var messages []model.OutgoingMessage
	err := db.Where("pickup_id = ?", pickupID).
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (m *Message) ListFailures(ctx context.Context, limit, offset int) ([]model.OutgoingMessage, int64, error) {
	query := m.db.Model(&model.OutgoingMessage{}).
		Where("status = ? AND dismissed_at IS NULL", model.MessageStatusFailed)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []model.OutgoingMessage
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (m *Message) FindBalanceFailures(ctx context.Context) ([]model.OutgoingMessage, error) {
	var messages []model.OutgoingMessage

	err := m.db.
		Where("status = ? AND balance_failure = ? AND dismissed_at IS NULL",
			model.MessageStatusFailed, true).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (m *Message) SetDismissed(ctx context.Context, id int64, by string, at time.Time) error {
	db := GetTx(ctx, m.db)

	result := db.Model(&model.OutgoingMessage{}).
		Where("id = ? AND status IN (?, ?)", id, model.MessageStatusFailed, model.MessageStatusSent).
		Updates(map[string]interface{}{
			"dismissed_at": at,
			"dismissed_by": by,
			"updated_at":   time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (m *Message) ClearDismissed(ctx context.Context, id int64) error {
	db := GetTx(ctx, m.db)

	result := db.Model(&model.OutgoingMessage{}).
		Where("id = ? AND dismissed_at IS NOT NULL", id).
		Updates(map[string]interface{}{
			"dismissed_at": nil,
			"dismissed_by": nil,
			"updated_at":   time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (m *Message) FindUnconfirmedSent(ctx context.Context, sentBefore time.Time, limit int) ([]model.OutgoingMessage, error) {
	var messages []model.OutgoingMessage

	err := m.db.
		Where("status = ? AND provider_status IS NULL AND sent_at <= ?",
			model.MessageStatusSent, sentBefore).
		Order("sent_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (m *Message) SetProviderStatus(ctx context.Context, id int64, status string) error {
	return m.db.Model(&model.OutgoingMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"provider_status": status,
			"updated_at":      time.Now(),
		}).Error
}

func (m *Message) AnonymizeByHousehold(ctx context.Context, householdRef string) (int64, error) {
	db := GetTx(ctx, m.db)

	result := db.Model(&model.OutgoingMessage{}).
		Where("household_ref = ?", householdRef).
		Updates(map[string]interface{}{
			"destination_address": "",
			"text":                "",
			"updated_at":          time.Now(),
		})

	return result.RowsAffected, result.Error
}
