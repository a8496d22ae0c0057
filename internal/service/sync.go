package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gymfuel/gymfuel-sync/config"
	"github.com/gymfuel/gymfuel-sync/internal/models"
	"github.com/gymfuel/gymfuel-sync/internal/netmon"
)

// SyncStatus is the data behind the user-facing sync indicator.
type SyncStatus struct {
	Online    bool       `json:"online"`
	Draining  bool       `json:"draining"`
	Pending   int64      `json:"pending"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// DrainResult summarizes one drain pass over the sync queue.
type DrainResult struct {
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}

// SyncService reconciles the mirror store with the remote API: it cache-fills
// the mirror from successful remote fetches and drains the sync queue back to
// the server once connectivity returns.
type SyncService struct {
	db      *gorm.DB
	remote  RemoteAPI
	data    *UnifiedDataService
	monitor *netmon.Monitor
	log     *logrus.Logger

	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration

	mu          sync.Mutex
	draining    bool
	lastSync    *time.Time
	lastError   string
	unsubscribe func()
}

// NewSyncService creates a new SyncService instance
func NewSyncService(db *gorm.DB, remote RemoteAPI, data *UnifiedDataService, monitor *netmon.Monitor, cfg *config.Config, log *logrus.Logger) *SyncService {
	return &SyncService{
		db:          db,
		remote:      remote,
		data:        data,
		monitor:     monitor,
		log:         log,
		maxAttempts: cfg.SyncMaxAttempts,
		backoffMin:  cfg.SyncBackoffMin,
		backoffMax:  cfg.SyncBackoffMax,
	}
}

// Start subscribes to connectivity transitions. A drain pass kicks off every
// time the device comes back online.
func (s *SyncService) Start(ctx context.Context) {
	s.unsubscribe = s.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			if _, err := s.Drain(ctx); err != nil && err != ErrDrainInProgress {
				s.log.WithError(err).Error("drain after reconnect failed")
			}
		}()
	})
	s.log.Info("sync service started")
}

// Stop removes the connectivity subscription. An in-flight drain pass runs to
// completion; there is no cancellation of started replays.
func (s *SyncService) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Status reports the current sync state.
func (s *SyncService) Status(ctx context.Context) (*SyncStatus, error) {
	var pending int64
	if err := s.db.WithContext(ctx).Model(&models.SyncQueueItem{}).Count(&pending).Error; err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return &SyncStatus{
		Online:    s.monitor.IsOnline(),
		Draining:  s.draining,
		Pending:   pending,
		LastSync:  s.lastSync,
		LastError: s.lastError,
	}, nil
}

// --- Cache-fill ---

// Refresh pulls the user's collections from the remote API and cache-fills
// the mirror. A cache refresh is not a user mutation, so nothing is enqueued.
func (s *SyncService) Refresh(ctx context.Context, userID int64) error {
	products, err := s.remote.FetchProducts(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch products: %w", err)
	}
	if err := s.CacheFillProducts(ctx, products); err != nil {
		return err
	}

	consumptions, err := s.remote.FetchConsumptions(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch consumptions: %w", err)
	}
	if err := s.CacheFillConsumptions(ctx, consumptions); err != nil {
		return err
	}

	goals, err := s.remote.FetchNutritionGoals(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch nutrition goals: %w", err)
	}
	if goals != nil {
		if err := s.CacheFillNutritionGoals(ctx, goals); err != nil {
			return err
		}
	}
	return nil
}

// CacheFillProducts upserts server rows into the mirror by id. Server rows
// are by definition synced.
func (s *SyncService) CacheFillProducts(ctx context.Context, products []*models.Product) error {
	now := time.Now()
	for _, p := range products {
		p.MarkSynced(now)
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error; err != nil {
			return fmt.Errorf("failed to cache product %d: %w", p.ID, err)
		}
	}
	return nil
}

// CacheFillConsumptions upserts server consumption rows into the mirror.
func (s *SyncService) CacheFillConsumptions(ctx context.Context, consumptions []*models.Consumption) error {
	now := time.Now()
	for _, c := range consumptions {
		c.MarkSynced(now)
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(c).Error; err != nil {
			return fmt.Errorf("failed to cache consumption %d: %w", c.ID, err)
		}
	}
	return nil
}

// CacheFillNutritionGoals upserts the server goals row into the mirror. Goals
// carry a unique index on user_id, so a row the user created offline under a
// local id is replaced by the server row rather than colliding with it; any
// queued local change still overlays it in the reconciled view.
func (s *SyncService) CacheFillNutritionGoals(ctx context.Context, goals *models.NutritionGoals) error {
	goals.MarkSynced(time.Now())
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND id <> ?", goals.UserID, goals.ID).
			Delete(&models.NutritionGoals{}).Error; err != nil {
			return fmt.Errorf("failed to clear stale nutrition goals: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(goals).Error; err != nil {
			return fmt.Errorf("failed to cache nutrition goals: %w", err)
		}
		return nil
	})
}

// --- Drain ---

// Drain replays queued mutations against the remote API, oldest first so a
// record's create-update-delete history keeps its causal order. Successes are
// removed from the queue; failures stay, in their original relative order,
// with the error annotated on both the item and the mirror row. Partial
// failure never rolls back the successes.
func (s *SyncService) Drain(ctx context.Context) (*DrainResult, error) {
	if !s.monitor.IsOnline() {
		return nil, fmt.Errorf("cannot drain sync queue while offline")
	}

	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return nil, ErrDrainInProgress
	}
	s.draining = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.draining = false
		s.mu.Unlock()
	}()

	var items []*models.SyncQueueItem
	if err := s.db.WithContext(ctx).Order("timestamp, id").Find(&items).Error; err != nil {
		return nil, err
	}

	result := &DrainResult{}
	var firstErr error
	for _, queued := range items {
		// Re-read the item: replaying an earlier create may have remapped
		// this one onto the server-assigned id.
		item := queued
		var fresh models.SyncQueueItem
		if err := s.db.WithContext(ctx).First(&fresh, queued.ID).Error; err == nil {
			item = &fresh
		}

		if err := s.replayWithRetry(ctx, item); err != nil {
			result.Failed++
			if firstErr == nil {
				firstErr = err
			}
			s.recordFailure(ctx, item, err)
			continue
		}
		result.Replayed++
		if err := s.db.WithContext(ctx).Delete(&models.SyncQueueItem{}, item.ID).Error; err != nil {
			return result, fmt.Errorf("failed to clear queue item %d: %w", item.ID, err)
		}
	}

	now := time.Now()
	s.mu.Lock()
	s.lastSync = &now
	if firstErr != nil {
		s.lastError = firstErr.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"replayed": result.Replayed,
		"failed":   result.Failed,
	}).Info("sync drain finished")

	return result, nil
}

// replayWithRetry retries a single item with capped exponential backoff up to
// the bounded attempt count.
func (s *SyncService) replayWithRetry(ctx context.Context, item *models.SyncQueueItem) error {
	var err error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(s.backoff(attempt))
		}
		if err = s.replay(ctx, item); err == nil {
			return nil
		}
		s.log.WithError(err).WithFields(logrus.Fields{
			"queue_id": item.ID,
			"attempt":  attempt + 1,
			"max":      s.maxAttempts,
		}).Warn("replay attempt failed")
	}
	return err
}

// backoff doubles the delay per attempt, capped at backoffMax.
func (s *SyncService) backoff(attempt int) time.Duration {
	d := s.backoffMin << uint(attempt-1)
	if d <= 0 || d > s.backoffMax {
		return s.backoffMax
	}
	return d
}

// replay applies one queue item against the remote API and reconciles the
// mirror with the server's canonical row.
func (s *SyncService) replay(ctx context.Context, item *models.SyncQueueItem) error {
	ctx = WithIdempotencyKey(ctx, item.IdempotencyKey)

	switch item.Operation {
	case models.OpCreate:
		resp, err := s.remote.Create(ctx, item.TableName, json.RawMessage(item.Data))
		if err != nil {
			return err
		}
		return s.applyServerRow(ctx, item, resp)

	case models.OpUpdate:
		resp, err := s.remote.Update(ctx, item.TableName, item.RecordID, json.RawMessage(item.Data))
		if err != nil {
			return err
		}
		return s.applyServerRow(ctx, item, resp)

	case models.OpDelete:
		if err := s.remote.Delete(ctx, item.TableName, item.RecordID); err != nil {
			return err
		}
		// Replaying this record's earlier create may have resurrected the
		// mirror row; remove it again so the mirror matches the server.
		return s.deleteLocalRow(s.db.WithContext(ctx), item.TableName, item.RecordID)

	default:
		return fmt.Errorf("unknown queue operation %q", item.Operation)
	}
}

// applyServerRow writes the server's canonical row back into the mirror and,
// when the server assigned a new id to an offline-created row, remaps the
// temporary key: delete the old row, insert the server row, and rewrite any
// later queue entries still pointing at the temporary id.
func (s *SyncService) applyServerRow(ctx context.Context, item *models.SyncQueueItem, row json.RawMessage) error {
	var ident struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(row, &ident); err != nil {
		return fmt.Errorf("failed to decode server row: %w", err)
	}
	if ident.ID == 0 {
		return fmt.Errorf("server row is missing an id")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ident.ID != item.RecordID {
			if err := s.deleteLocalRow(tx, item.TableName, item.RecordID); err != nil {
				return err
			}
			if err := s.remapQueuedItems(tx, item, ident.ID); err != nil {
				return err
			}
		}
		return s.upsertServerRow(tx, item.TableName, row)
	})
}

func (s *SyncService) deleteLocalRow(tx *gorm.DB, table string, id int64) error {
	model, err := modelFor(table)
	if err != nil {
		return err
	}
	return tx.Where("id = ?", id).Delete(model).Error
}

// remapQueuedItems points later queue entries for the same record at the
// server-assigned id, rewriting their snapshots so replays stay
// self-sufficient.
func (s *SyncService) remapQueuedItems(tx *gorm.DB, replayed *models.SyncQueueItem, newID int64) error {
	var later []*models.SyncQueueItem
	err := tx.Where("table_name = ? AND record_id = ? AND id <> ?", replayed.TableName, replayed.RecordID, replayed.ID).
		Order("timestamp, id").
		Find(&later).Error
	if err != nil {
		return err
	}

	for _, item := range later {
		item.RecordID = newID
		if len(item.Data) > 0 {
			var snapshot map[string]interface{}
			if err := json.Unmarshal(item.Data, &snapshot); err != nil {
				return fmt.Errorf("failed to rewrite queue snapshot %d: %w", item.ID, err)
			}
			snapshot["id"] = newID
			raw, err := json.Marshal(snapshot)
			if err != nil {
				return err
			}
			item.Data = models.JSONPayload(raw)
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}
	}
	return nil
}

// upsertServerRow stores the canonical row, marked synced.
func (s *SyncService) upsertServerRow(tx *gorm.DB, table string, row json.RawMessage) error {
	now := time.Now()
	switch table {
	case models.TableProducts:
		var p models.Product
		if err := json.Unmarshal(row, &p); err != nil {
			return err
		}
		p.MarkSynced(now)
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&p).Error
	case models.TableConsumptions:
		var c models.Consumption
		if err := json.Unmarshal(row, &c); err != nil {
			return err
		}
		c.MarkSynced(now)
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&c).Error
	case models.TableNutritionGoals:
		var g models.NutritionGoals
		if err := json.Unmarshal(row, &g); err != nil {
			return err
		}
		g.MarkSynced(now)
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&g).Error
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

// recordFailure annotates the exhausted item and its mirror row. The user's
// local mutation already succeeded, so the failure surfaces through the sync
// status rather than an error to the caller.
func (s *SyncService) recordFailure(ctx context.Context, item *models.SyncQueueItem, replayErr error) {
	updates := map[string]interface{}{
		"attempts":   gorm.Expr("attempts + ?", s.maxAttempts),
		"last_error": replayErr.Error(),
	}
	if err := s.db.WithContext(ctx).Model(&models.SyncQueueItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
		s.log.WithError(err).WithField("queue_id", item.ID).Error("failed to annotate queue item")
	}

	if item.Operation != models.OpDelete {
		if err := s.data.MarkAsSyncError(ctx, item.TableName, item.RecordID, replayErr); err != nil {
			s.log.WithError(err).WithField("queue_id", item.ID).Error("failed to annotate mirror row")
		}
	}
}
