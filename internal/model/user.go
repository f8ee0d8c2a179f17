package model

import (
	"strings"
	"time"
)

// Role is the closed set of account roles. The stored values are the labels
// the clients display.
type Role string

const (
	RoleOwner  Role = "владелец"
	RoleAdmin  Role = "администратор"
	RoleVIP    Role = "VIP"
	RoleMember Role = "пользователь"
)

// Roles lists every valid role.
var Roles = []Role{RoleOwner, RoleAdmin, RoleVIP, RoleMember}

// ParseRole accepts a stored label or its English alias.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	for _, r := range Roles {
		if s == string(r) {
			return r, true
		}
	}
	switch strings.ToLower(s) {
	case "owner":
		return RoleOwner, true
	case "admin", "administrator":
		return RoleAdmin, true
	case "vip":
		return RoleVIP, true
	case "member", "user":
		return RoleMember, true
	}
	return "", false
}

// CanModerate reports whether the role may list, ban and unban users.
func (r Role) CanModerate() bool {
	switch r {
	case RoleOwner, RoleAdmin:
		return true
	case RoleVIP, RoleMember:
		return false
	default:
		return false
	}
}

// CanAssignRoles reports whether the role may change other users' roles.
func (r Role) CanAssignRoles() bool {
	switch r {
	case RoleOwner:
		return true
	case RoleAdmin, RoleVIP, RoleMember:
		return false
	default:
		return false
	}
}

// Column widths for user-supplied text, in runes.
const (
	MaxEmailLength       = 255
	MaxDisplayNameLength = 100
	MaxAvatarURLLength   = 512
)

// User is an account. Username and email are stored lowercased.
// BanReason is set only while IsBanned is true.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	DisplayName  string    `gorm:"type:varchar(100);not null"`
	AvatarURL    *string   `gorm:"type:varchar(512)"`
	Role         Role      `gorm:"type:varchar(32);not null;default:'пользователь'"`
	IsBanned     bool      `gorm:"not null;default:false"`
	BanReason    *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}
