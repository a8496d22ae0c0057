package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is a food product a user can log consumption against. The macro and
// calorie fields are per 100g and must be non-negative. Identity is immutable
// once created; offline-created rows hold a mirror-assigned id until the
// server issues the authoritative one on sync.
type Product struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Calories  float64   `gorm:"not null;check:calories >= 0" json:"calories"`
	Protein   float64   `gorm:"not null;check:protein >= 0" json:"protein"`
	Fat       float64   `gorm:"not null;check:fat >= 0" json:"fat"`
	Carbs     float64   `gorm:"not null;check:carbs >= 0" json:"carbs"`
	UserID    int64     `gorm:"index;not null" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	SyncMeta `gorm:"embedded"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	p.stampCreate()
	return nil
}
