package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	ProjectStatusPlanned    = "planned"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
)

type Project struct {
	gorm.Model
	LeadID      *uint          `gorm:"column:lead_id;index" json:"lead_id,omitempty"`
	Name        string         `gorm:"column:name;size:255;not null" json:"name"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	Status      string         `gorm:"column:status;size:50;not null;default:planned" json:"status"`
	Value       float64        `gorm:"column:value;default:0" json:"value"`
	StartDate   *time.Time     `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate     *time.Time     `gorm:"column:end_date" json:"end_date,omitempty"`
	PhotoURLs   pq.StringArray `gorm:"type:text[];column:photo_urls" json:"photo_urls,omitempty"`

	Lead *Lead `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}
