package models

import (
	"time"

	"gorm.io/gorm"
)

type Message struct {
	gorm.Model
	LeadID  *uint      `gorm:"column:lead_id;index" json:"lead_id,omitempty"`
	Name    string     `gorm:"column:name;size:255;not null" json:"name"`
	Email   string     `gorm:"column:email;size:255" json:"email"`
	Phone   string     `gorm:"column:phone;size:20" json:"phone"`
	Subject string     `gorm:"column:subject;size:255" json:"subject"`
	Body    string     `gorm:"column:body;type:text;not null" json:"body"`
	Read    bool       `gorm:"column:read;default:false" json:"read"`
	ReadAt  *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`

	Lead *Lead `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}
