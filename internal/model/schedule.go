package model

import "time"

// LocationSchedule is one weekday window of a date-ranged schedule version
// published for a pickup location. A location can have several versions
// (seasonal hours); the version whose [StartDate, EndDate] contains the
// pickup date decides that day's open window. Minutes count from midnight
// local time.
type LocationSchedule struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	LocationID  int64     `gorm:"column:location_id;index"`
	StartDate   time.Time `gorm:"column:start_date"`
	EndDate     time.Time `gorm:"column:end_date"`
	Weekday     int       `gorm:"column:weekday"` // 0 = Sunday .. 6 = Saturday
	OpenMinute  int       `gorm:"column:open_minute"`
	CloseMinute int       `gorm:"column:close_minute"`
	Closed      bool      `gorm:"column:closed"`
}

func (LocationSchedule) TableName() string {
	return "location_schedules"
}
