package models

import (
	"time"

	"gorm.io/gorm"
)

// Consumption is a single logged intake of a product, in grams. ProductID is a
// weak reference: the consumption does not own the product, it is joined at
// read time for display. Rows created while offline carry a synthetic negative
// id until the server assigns the authoritative positive one.
type Consumption struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ProductID int64     `gorm:"index;not null" json:"productId"`
	Amount    float64   `gorm:"not null;check:amount > 0" json:"amount"`
	UserID    int64     `gorm:"index;not null" json:"userId"`
	Date      time.Time `gorm:"index;not null" json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	SyncMeta `gorm:"embedded"`

	// Product is the denormalized snapshot attached at read time. Never persisted.
	Product *Product `gorm:"-" json:"product,omitempty"`
}

func (c *Consumption) BeforeCreate(tx *gorm.DB) error {
	c.stampCreate()
	return nil
}

// IsLocalOnly reports whether the row still carries a synthetic offline id.
func (c *Consumption) IsLocalOnly() bool {
	return c.ID < 0
}
