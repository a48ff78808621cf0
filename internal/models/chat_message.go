package models

import "time"

// ChatMessage is a persisted support-chat message. Its ID is the room's total order.
type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomName   string    `gorm:"type:text;not null;index:idx_room_msg" json:"room"`
	SenderID   uint      `gorm:"not null" json:"sender_id"`
	SenderName string    `gorm:"type:text;not null" json:"sender"`
	SenderRole Role      `gorm:"type:text;not null" json:"role"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	CreatedAt  time.Time `gorm:"index:idx_room_msg" json:"created_at"`
}

// ActiveRoom is a room with at least one message.
type ActiveRoom struct {
	RoomName     string    `json:"room"`
	LastActivity time.Time `json:"last_activity"`
}

// OTPRecord is a one-time email verification code. Older rows for the same email
// are stale but kept until a verification clears them all.
type OTPRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Email     string    `gorm:"type:text;not null;index"`
	Code      string    `gorm:"type:text;not null"`
	Attempts  int       `gorm:"not null;default:0"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

// Expired reports whether the code is no longer usable at now.
func (o *OTPRecord) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
