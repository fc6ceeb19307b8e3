package repository

import (
	"context"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"gorm.io/gorm"
)

type ScheduleRepository interface {
	FindByLocation(ctx context.Context, locationID int64) ([]model.LocationSchedule, error)
}

type Schedule struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &Schedule{db: db}
}

func (s *Schedule) FindByLocation(ctx context.Context, locationID int64) ([]model.LocationSchedule, error) {
	var schedules []model.LocationSchedule

	err := s.db.
		Where("location_id = ?", locationID).
		Order("start_date ASC, weekday ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}

	return schedules, nil
}
