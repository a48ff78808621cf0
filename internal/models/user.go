package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role is the fixed role of a user. It never changes after creation.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
	RoleWorker  Role = "worker"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleAdmin, RoleWorker:
		return true
	}
	return false
}

// User представляє користувача системи: громадянина, адміністратора або працівника.
// IsActive=false for a worker is a soft delete: the row stays so assignment history
// keeps resolving, but the worker is no longer assignable.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:text;not null;index" json:"name"`
	Email        string    `gorm:"type:text;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"type:text;not null" json:"-"`
	Role         Role      `gorm:"type:text;not null;index" json:"role"`
	Address      string    `gorm:"type:text" json:"address,omitempty"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate нормалізує email та ім'я перед вставкою.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
	return
}
