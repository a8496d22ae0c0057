package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// deviceIdentity is the single-row table holding this device's persisted id.
// The id is attached to every replayed mutation so the server can de-duplicate
// retries from the same device.
type deviceIdentity struct {
	ID       int64  `gorm:"primaryKey"`
	DeviceID string `gorm:"size:36;not null"`
}

func (deviceIdentity) TableName() string {
	return "device_identity"
}

// EnsureDeviceID returns the persisted device id, generating and storing a new
// one on first startup.
func EnsureDeviceID(db *gorm.DB) (string, error) {
	var row deviceIdentity
	err := db.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = deviceIdentity{ID: 1, DeviceID: uuid.New().String()}
		if err := db.Create(&row).Error; err != nil {
			return "", fmt.Errorf("failed to persist device id: %w", err)
		}
		return row.DeviceID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	return row.DeviceID, nil
}
