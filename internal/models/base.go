package models

import "time"

// BaseModel is gorm.Model without soft deletion, for rows that are never removed.
type BaseModel struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}
