package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProposalStatusDraft    = "draft"
	ProposalStatusSent     = "sent"
	ProposalStatusAccepted = "accepted"
	ProposalStatusDeclined = "declined"
)

type Proposal struct {
	gorm.Model
	LeadID    *uint      `gorm:"column:lead_id;index" json:"lead_id,omitempty"`
	ProjectID *uint      `gorm:"column:project_id;index" json:"project_id,omitempty"`
	Title     string     `gorm:"column:title;size:255;not null" json:"title"`
	Notes     string     `gorm:"column:notes;type:text" json:"notes"`
	Amount    float64    `gorm:"column:amount;not null" json:"amount"`
	Status    string     `gorm:"column:status;size:50;not null;default:draft" json:"status"`
	SentAt    *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`

	Lead    *Lead    `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (Proposal) TableName() string {
	return "proposals"
}
