package models

import (
	"time"

	"gorm.io/gorm"
)

// Appointment lifecycle statuses. A scheduled appointment either gets
// cancelled (terminal), completed, or rescheduled in place with the
// status left untouched.
const (
	AppointmentStatusScheduled = "scheduled"
	AppointmentStatusCancelled = "cancelled"
	AppointmentStatusCompleted = "completed"
)

type Appointment struct {
	gorm.Model
	LeadID      *uint     `gorm:"column:lead_id;index" json:"lead_id,omitempty"`
	Title       string    `gorm:"column:title;size:255;not null" json:"title"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Location    string    `gorm:"column:location;size:500" json:"location"`
	StartTime   time.Time `gorm:"column:start_time;not null;index;uniqueIndex:idx_scheduled_start,where:status = 'scheduled'" json:"start_time"`
	EndTime     time.Time `gorm:"column:end_time;not null" json:"end_time"`
	Status      string    `gorm:"column:status;size:50;not null;default:scheduled" json:"status"`

	Lead *Lead `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}
