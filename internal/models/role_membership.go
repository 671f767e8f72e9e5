package models

import "time"

// RoleMembershipStatus tracks whether a membership still grants its role.
type RoleMembershipStatus string

const (
	// RoleMembershipStatusActive grants the role.
	RoleMembershipStatusActive RoleMembershipStatus = "active"
	// RoleMembershipStatusRevoked keeps the row for audit but no longer grants the role.
	RoleMembershipStatusRevoked RoleMembershipStatus = "revoked"
)

// RoleMembership asserts that a user holds a named role.
// Role names form an open set and are stored as given; consumers normalize.
type RoleMembership struct {
	ID        uint                 `gorm:"primaryKey" json:"id"`
	UserID    uint                 `gorm:"not null;uniqueIndex:ux_user_roles_user_role,priority:1" json:"user_id"`
	Role      string               `gorm:"type:varchar(40);not null;uniqueIndex:ux_user_roles_user_role,priority:2" json:"role"`
	Status    RoleMembershipStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Source    string               `gorm:"type:varchar(40)" json:"source,omitempty"`
	GrantedBy *uint                `json:"granted_by,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (RoleMembership) TableName() string {
	return "user_roles"
}
