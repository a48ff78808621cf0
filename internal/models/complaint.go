package models

import "time"

// ComplaintStatus is the lifecycle state of a complaint.
type ComplaintStatus string

const (
	StatusSubmitted  ComplaintStatus = "Submitted"
	StatusAssigned   ComplaintStatus = "Assigned"
	StatusInProgress ComplaintStatus = "In Progress"
	StatusResolved   ComplaintStatus = "Resolved"
)

// ParseComplaintStatus converts user input into a known status.
func ParseComplaintStatus(s string) (ComplaintStatus, bool) {
	switch st := ComplaintStatus(s); st {
	case StatusSubmitted, StatusAssigned, StatusInProgress, StatusResolved:
		return st, true
	}
	return "", false
}

// Complaint is a citizen report. Rows are never deleted; status only moves forward.
type Complaint struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CitizenID       uint            `gorm:"not null;index" json:"citizen_id"`
	CitizenName     string          `gorm:"type:text;not null" json:"citizen_name"`
	Title           string          `gorm:"type:text;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	Location        string          `gorm:"type:text" json:"location"`
	Latitude        *float64        `json:"latitude"`
	Longitude       *float64        `json:"longitude"`
	Photo           *string         `gorm:"type:text" json:"photo"`
	CompletionPhoto *string         `gorm:"type:text" json:"completion_photo"`
	Status          ComplaintStatus `gorm:"type:text;not null;index" json:"status"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Assignment is one assignment event. The row with the highest ID for a complaint
// names its current worker.
type Assignment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ComplaintID uint      `gorm:"not null;index" json:"complaint_id"`
	WorkerID    uint      `gorm:"not null;index" json:"worker_id"`
	WorkerName  string    `gorm:"type:text;not null;index" json:"worker_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// MapPoint is the projection used by the complaints map.
type MapPoint struct {
	ID        uint            `json:"id"`
	Status    ComplaintStatus `json:"status"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
}

// WorkerActivity is a compact complaint row for the admin worker view.
type WorkerActivity struct {
	ID              uint            `json:"id"`
	Title           string          `json:"title"`
	Status          ComplaintStatus `json:"status"`
	Location        string          `json:"location"`
	Latitude        *float64        `json:"latitude"`
	Longitude       *float64        `json:"longitude"`
	CompletionPhoto *string         `json:"completion_photo"`
}

// CitizenActivity is one entry of a citizen's recent activity timeline.
type CitizenActivity struct {
	Title     string          `json:"title"`
	Status    ComplaintStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StatusCounts aggregates a citizen's complaints.
type StatusCounts struct {
	Total    int64 `json:"total"`
	Resolved int64 `json:"resolved"`
	Pending  int64 `json:"pending"`
}
