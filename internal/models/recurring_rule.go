package models

import "time"

// RecurringRule belongs to the task that created it; successors spawned from
// that task point at the same row.
type RecurringRule struct {
	BaseModel

	Frequency string `gorm:"not null"` // "daily", "weekly", "monthly"
	Interval  int    `gorm:"not null;default:1"`
	EndDate   *time.Time
}
