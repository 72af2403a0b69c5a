package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead statuses as they move through the sales funnel.
const (
	LeadStatusNew                  = "new"
	LeadStatusContacted            = "contacted"
	LeadStatusNeedsFollowUp        = "needs_follow_up"
	LeadStatusBooked               = "booked"
	LeadStatusEstimateSent         = "estimate_sent"
	LeadStatusWon                  = "won"
	LeadStatusLost                 = "lost"
	LeadStatusAppointmentCancelled = "appointment_cancelled"
)

type Lead struct {
	gorm.Model
	Reference       string     `gorm:"column:reference;size:36;uniqueIndex" json:"reference"`
	FullName        string     `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email           string     `gorm:"column:email;size:255" json:"email"`
	Phone           string     `gorm:"column:phone;size:20" json:"phone"`
	Address         string     `gorm:"column:address;size:500" json:"address"`
	ServiceType     string     `gorm:"column:service_type;size:100" json:"service_type"`
	Source          string     `gorm:"column:source;size:100" json:"source"`
	Notes           string     `gorm:"column:notes;type:text" json:"notes"`
	Status          string     `gorm:"column:status;size:50;not null;default:new" json:"status"`
	AppointmentDate *time.Time `gorm:"column:appointment_date" json:"appointment_date,omitempty"`
	BookedAt        *time.Time `gorm:"column:booked_at" json:"booked_at,omitempty"`

	Appointments []Appointment `gorm:"foreignKey:LeadID" json:"appointments,omitempty"`
}

func (Lead) TableName() string {
	return "leads"
}
