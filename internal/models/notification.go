package models

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Recipient selects who a notification is for: either every user of a role
// (UserID == nil) or one concrete user.
type Recipient struct {
	Role   Role
	UserID *uint
	Name   string
}

// ToRole addresses every user holding role.
func ToRole(role Role) Recipient {
	return Recipient{Role: role}
}

// ToUser addresses a single user.
func ToUser(role Role, id uint, name string) Recipient {
	return Recipient{Role: role, UserID: &id, Name: name}
}

// IsBroadcast reports whether the recipient is a whole role.
func (r Recipient) IsBroadcast() bool { return r.UserID == nil }

// Notification is append-only; reading it does not change it.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserRole  Role      `gorm:"type:text;not null;index:idx_notification_recipient" json:"user_role"`
	UserID    *uint     `gorm:"index:idx_notification_recipient" json:"user_id,omitempty"`
	UserName  string    `gorm:"type:text" json:"user_name"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotification builds a notification row for r.
func NewNotification(r Recipient, message string) *Notification {
	n := &Notification{UserRole: r.Role, UserID: r.UserID, UserName: r.Name, Message: message}
	if r.IsBroadcast() && n.UserName == "" {
		n.UserName = string(r.Role)
	}
	return n
}

// AnnouncementType is a free-form category; General is the default.
type AnnouncementType string

const (
	AnnouncementGeneral   AnnouncementType = "General"
	AnnouncementEmergency AnnouncementType = "Emergency"
	AnnouncementUtility   AnnouncementType = "Utility"
)

// RoleList is stored as a PostgreSQL text[] column (plain text elsewhere, using
// the same array literal encoding).
type RoleList []string

func (r RoleList) Value() (driver.Value, error) { return pq.StringArray(r).Value() }

func (r *RoleList) Scan(src any) error { return (*pq.StringArray)(r).Scan(src) }

func (RoleList) GormDataType() string { return "text" }

// GormDBDataType picks the column type per dialect.
func (RoleList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Announcement is broadcast to every role listed in Audience.
type Announcement struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	Title     string           `gorm:"type:text;not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Type      AnnouncementType `gorm:"type:text;not null;default:'General'" json:"type"`
	Audience  RoleList         `json:"audience"` // Ролі, яким адресовано оголошення
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

// VisibleTo reports whether the announcement targets role.
func (a *Announcement) VisibleTo(role Role) bool {
	if len(a.Audience) == 0 {
		return role == RoleCitizen
	}
	for _, r := range a.Audience {
		if Role(r) == role {
			return true
		}
	}
	return false
}
