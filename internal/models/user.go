package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account holder of the dashboard.
type User struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	Username  string           `gorm:"size:30;uniqueIndex;not null" json:"username"`
	Email     string           `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password  string           `gorm:"not null" json:"-"`
	IsAdmin   bool             `gorm:"default:false" json:"is_admin"`
	Roles     []RoleMembership `gorm:"foreignKey:UserID" json:"roles,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"-"`
}
