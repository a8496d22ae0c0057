package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Table names a queue item can target.
const (
	TableProducts       = "products"
	TableConsumptions   = "consumptions"
	TableNutritionGoals = "nutritionGoals"
)

// Operations a queue item can carry.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// JSONPayload is a raw JSON column. It stores queue snapshots verbatim so a
// replayed item is self-sufficient regardless of later mirror state.
type JSONPayload json.RawMessage

// Value implements the driver.Valuer interface.
func (p JSONPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return string(p), nil
}

// Scan implements the sql.Scanner interface.
func (p *JSONPayload) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*p = append((*p)[:0], v...)
	case string:
		*p = JSONPayload(v)
	default:
		return fmt.Errorf("unsupported payload type %T", value)
	}
	return nil
}

// MarshalJSON passes the raw payload through.
func (p JSONPayload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores the raw payload verbatim.
func (p *JSONPayload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// SyncQueueItem is one pending local mutation awaiting replay against the
// remote API. The queue is append-only: an item is removed once replayed
// successfully, otherwise it stays with its last error annotated.
type SyncQueueItem struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	TableName string `gorm:"size:32;not null;index:idx_sync_queue_scope" json:"tableName"`
	Operation string `gorm:"size:16;not null" json:"operation"`
	RecordID  int64  `gorm:"not null;index" json:"recordId"`
	// Data is the full row snapshot for create/update, nil for delete.
	Data      JSONPayload `gorm:"type:text" json:"data"`
	Timestamp time.Time   `gorm:"index;not null" json:"timestamp"`
	UserID    int64       `gorm:"not null;index:idx_sync_queue_scope" json:"userId"`

	// Replay bookkeeping. IdempotencyKey lets the server de-duplicate a
	// mutation that was applied but whose response never reached us.
	IdempotencyKey string `gorm:"size:36;not null" json:"idempotencyKey"`
	Attempts       int    `gorm:"not null;default:0" json:"attempts"`
	LastError      string `gorm:"type:text" json:"lastError,omitempty"`
}
