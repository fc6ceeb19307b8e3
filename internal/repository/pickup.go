package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"gorm.io/gorm"
)

var ErrPickupNotFound = errors.New("PICKUP_NOT_FOUND")

type PickupRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Pickup, error)
	SoftDelete(ctx context.Context, id int64) error
	UpdateWindow(ctx context.Context, id int64, earliest, latest time.Time) error
	FindUpcoming(ctx context.Context, from, to time.Time) ([]model.Pickup, error)
}

type Pickup struct {
	db *gorm.DB
}

func NewPickupRepository(db *gorm.DB) PickupRepository {
	return &Pickup{db: db}
}

func (p *Pickup) GetByID(ctx context.Context, id int64) (*model.Pickup, error) {
	db := GetTx(ctx, p.db)

	var pickup model.Pickup
	err := db.Where("id = ?", id).First(&pickup).Error
	if err == nil {
		return &pickup, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPickupNotFound
	}

	return nil, err
}

func (p *Pickup) SoftDelete(ctx context.Context, id int64) error {
	db := GetTx(ctx, p.db)

	result := db.Model(&model.Pickup{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"deleted_at": time.Now(),
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

func (p *Pickup) UpdateWindow(ctx context.Context, id int64, earliest, latest time.Time) error {
	db := GetTx(ctx, p.db)

	result := db.Model(&model.Pickup{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"earliest":   earliest,
			"latest":     latest,
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

func (p *Pickup) FindUpcoming(ctx context.Context, from, to time.Time) ([]model.Pickup, error) {
	var pickups []model.Pickup

	err := p.db.
		Where("deleted_at IS NULL AND earliest >= ? AND earliest < ?", from, to).
		Order("earliest ASC").
		Find(&pickups).Error
	if err != nil {
		return nil, err
	}

	return pickups, nil
}
