package models

import "gorm.io/datatypes"

// AuditLog rows are append-only. UserID and TargetID are weak references and
// outlive the rows they point at.
type AuditLog struct {
	BaseModel

	UserID     uint   `gorm:"not null;index"`
	Action     string `gorm:"not null"` // "create", "update", "delete"
	TargetType string `gorm:"not null"`
	TargetID   uint   `gorm:"not null;index"`
	Details    datatypes.JSON

	User *User `gorm:"foreignKey:UserID"`
}
