package models

import "time"

// SyncMeta carries the per-record synchronization bookkeeping that the mirror
// store maintains alongside every cached entity. A record with Synced=false is
// local intent that has not yet been confirmed by the remote API.
type SyncMeta struct {
	Synced        bool       `gorm:"column:synced;not null;default:false" json:"_synced"`
	SyncTimestamp *time.Time `gorm:"column:sync_timestamp" json:"_syncTimestamp,omitempty"`
	SyncError     *string    `gorm:"column:sync_error" json:"_syncError,omitempty"`
	LastModified  time.Time  `gorm:"column:last_modified" json:"_lastModified"`
	// Version is a monotonic per-record revision counter used to decide which
	// side, server or local, is newer.
	Version int64 `gorm:"column:version;not null;default:1" json:"_version"`

	// Modified is set only on records returned by the offline-changes
	// reconciliation; it marks rows that reflect queued, unsynced intent.
	// Never persisted.
	Modified bool `gorm:"-" json:"_modified,omitempty"`
}

func (m *SyncMeta) stampCreate() {
	if m.Version == 0 {
		m.Version = 1
	}
	m.LastModified = time.Now()
}

// MarkSynced records a successful replay against the remote API.
func (m *SyncMeta) MarkSynced(at time.Time) {
	m.Synced = true
	m.SyncTimestamp = &at
	m.SyncError = nil
}
