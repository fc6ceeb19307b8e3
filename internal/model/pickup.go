package model

import "time"

// Pickup is the read model of the appointment-scheduling domain: the time
// window a household collects its food parcel in. The rows live in the same
// database so the cancellation handler can mutate a pickup and its messages
// in one transaction.
type Pickup struct {
	ID           int64      `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	HouseholdRef string     `gorm:"column:household_ref;index"`
	LocationID   int64      `gorm:"column:location_id;index"`
	Locale       string     `gorm:"column:locale"`
	Earliest     time.Time  `gorm:"column:earliest"`
	Latest       time.Time  `gorm:"column:latest"`
	DeletedAt    *time.Time `gorm:"column:deleted_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (Pickup) TableName() string {
	return "pickups"
}
