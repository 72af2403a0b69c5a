package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Post struct {
	gorm.Model
	Title         string         `gorm:"column:title;size:255;not null" json:"title"`
	Slug          string         `gorm:"column:slug;size:255;not null;uniqueIndex" json:"slug"`
	Excerpt       string         `gorm:"column:excerpt;type:text" json:"excerpt"`
	Body          string         `gorm:"column:body;type:text;not null" json:"body"`
	CoverImageURL string         `gorm:"column:cover_image_url;size:500" json:"cover_image_url,omitempty"`
	Tags          pq.StringArray `gorm:"type:text[];column:tags" json:"tags,omitempty"`
	Published     bool           `gorm:"column:published;default:false" json:"published"`
	PublishedAt   *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
}

func (Post) TableName() string {
	return "posts"
}
