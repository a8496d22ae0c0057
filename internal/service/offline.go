package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gymfuel/gymfuel-sync/internal/models"
)

// OfflineDataService performs CRUD against the local mirror store and appends
// every mutation to the sync queue for later replay. Local mutations always
// appear to succeed immediately; synchronization happens asynchronously.
type OfflineDataService struct {
	db  *gorm.DB
	log *logrus.Logger
}

var _ IOfflineDataService = (*OfflineDataService)(nil)

// NewOfflineDataService creates a new OfflineDataService instance
func NewOfflineDataService(db *gorm.DB, log *logrus.Logger) *OfflineDataService {
	return &OfflineDataService{db: db, log: log}
}

// newLocalID returns a synthetic negative id for rows created offline, derived
// from the current time plus a random offset so it cannot collide with
// server-assigned positive ids before sync.
func newLocalID() int64 {
	return -(time.Now().UnixMilli() + rand.Int63n(1000))
}

// enqueue appends a mutation to the sync queue. The snapshot must be
// self-sufficient for replay, so callers pass the full row, not the patch.
func (s *OfflineDataService) enqueue(ctx context.Context, table, operation string, recordID int64, data interface{}, userID int64) error {
	return s.enqueueTx(s.db.WithContext(ctx), table, operation, recordID, data, userID)
}

// enqueueTx is enqueue inside a caller-owned transaction, so a mutation and
// its queue item commit or roll back together.
func (s *OfflineDataService) enqueueTx(tx *gorm.DB, table, operation string, recordID int64, data interface{}, userID int64) error {
	if userID == 0 {
		return ErrUserIDRequired
	}

	var payload models.JSONPayload
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal queue snapshot: %w", err)
		}
		payload = models.JSONPayload(raw)
	}

	item := models.SyncQueueItem{
		TableName:      table,
		Operation:      operation,
		RecordID:       recordID,
		Data:           payload,
		Timestamp:      time.Now(),
		UserID:         userID,
		IdempotencyKey: uuid.New().String(),
	}
	if err := tx.Create(&item).Error; err != nil {
		return fmt.Errorf("failed to enqueue %s %s: %w", table, operation, err)
	}

	s.log.WithFields(logrus.Fields{
		"table":     table,
		"operation": operation,
		"record_id": recordID,
		"user_id":   userID,
	}).Debug("queued offline mutation")

	return nil
}

// patchColumns translates a caller-supplied patch into mirror columns,
// dropping identity, generated, and sync-metadata fields.
func patchColumns(patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(patch))
	for key, value := range patch {
		switch key {
		case "id", "userId", "createdAt", "updatedAt":
			continue
		}
		if strings.HasPrefix(key, "_") {
			continue
		}
		out[toSnake(key)] = value
	}
	return out
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stampPatch adds the revision bookkeeping every mirror update carries.
func stampPatch(patch map[string]interface{}) map[string]interface{} {
	patch["version"] = gorm.Expr("version + 1")
	patch["last_modified"] = time.Now()
	patch["synced"] = false
	return patch
}

// --- Products ---

// CreateProduct inserts the product into the mirror, reads it back to pick up
// generated fields, and queues a create snapshot for sync. Insert and enqueue
// commit together, so a failed attempt leaves no orphan row and the caller may
// simply retry.
func (s *OfflineDataService) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.Name == "" {
		return nil, fmt.Errorf("product name is required")
	}

	var created models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		if err := tx.First(&created, product.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotRetrievable
			}
			return err
		}
		return s.enqueueTx(tx, models.TableProducts, models.OpCreate, created.ID, &created, created.UserID)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateProduct patches the stored row and queues the full updated snapshot.
// Returns (nil, nil) when the row no longer exists; at this layer that is a
// recoverable "nothing to update", not a hard error.
func (s *OfflineDataService) UpdateProduct(ctx context.Context, id int64, patch map[string]interface{}) (*models.Product, error) {
	var existing models.Product
	if err := s.db.WithContext(ctx).First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	columns := stampPatch(patchColumns(patch))
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(columns).Error; err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}

	var updated models.Product
	if err := s.db.WithContext(ctx).First(&updated, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotRetrievable
		}
		return nil, err
	}

	if err := s.enqueue(ctx, models.TableProducts, models.OpUpdate, updated.ID, &updated, updated.UserID); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteProduct removes the row and queues a delete marker. Deleting a row
// that does not exist is a silent no-op.
func (s *OfflineDataService) DeleteProduct(ctx context.Context, id int64) error {
	var existing models.Product
	if err := s.db.WithContext(ctx).First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Product{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	return s.enqueue(ctx, models.TableProducts, models.OpDelete, id, nil, existing.UserID)
}

// GetProducts returns the mirrored products for a user. Pure read, no queue
// interaction.
func (s *OfflineDataService) GetProducts(ctx context.Context, userID int64) ([]*models.Product, error) {
	var products []*models.Product
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// GetProductsWithOfflineChanges blends the mirrored server state with queued,
// unsynced intent: queued deletes remove rows, queued creates and updates
// override them with the snapshot from the queue, tagged _modified. When
// multiple items target the same record the most recently enqueued wins.
func (s *OfflineDataService) GetProductsWithOfflineChanges(ctx context.Context, userID int64) ([]*models.Product, error) {
	products, err := s.GetProducts(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.pendingItems(ctx, models.TableProducts, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(products))
	order := make([]int64, 0, len(products)+len(items))
	for _, p := range products {
		byID[p.ID] = p
		order = append(order, p.ID)
	}

	for _, item := range items {
		switch item.Operation {
		case models.OpDelete:
			delete(byID, item.RecordID)
		case models.OpCreate, models.OpUpdate:
			var p models.Product
			if err := json.Unmarshal(item.Data, &p); err != nil {
				s.log.WithError(err).WithField("queue_id", item.ID).Warn("skipping unreadable queue snapshot")
				continue
			}
			p.Modified = true
			if _, seen := byID[p.ID]; !seen {
				order = append(order, p.ID)
			}
			byID[p.ID] = &p
		}
	}

	result := make([]*models.Product, 0, len(byID))
	for _, id := range order {
		if p, ok := byID[id]; ok {
			result = append(result, p)
			delete(byID, id)
		}
	}
	return result, nil
}

// --- Consumptions ---

// CreateConsumption inserts a consumption row. Rows created here are offline
// intent, so missing ids get a synthetic negative one; the server issues the
// authoritative id on sync. The denormalized product snapshot comes from the
// mirror rather than a placeholder so the entry displays real nutrition data.
func (s *OfflineDataService) CreateConsumption(ctx context.Context, consumption *models.Consumption) (*models.Consumption, error) {
	if consumption.Amount <= 0 {
		return nil, fmt.Errorf("consumption amount must be positive")
	}
	if consumption.ID == 0 {
		consumption.ID = newLocalID()
	}
	if consumption.Date.IsZero() {
		consumption.Date = time.Now()
	}

	var created models.Consumption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(consumption).Error; err != nil {
			return fmt.Errorf("failed to create consumption: %w", err)
		}
		if err := tx.First(&created, "id = ?", consumption.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotRetrievable
			}
			return err
		}
		s.attachProductTx(tx, &created)
		return s.enqueueTx(tx, models.TableConsumptions, models.OpCreate, created.ID, &created, created.UserID)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateConsumption patches the stored row and queues the full updated
// snapshot. Returns (nil, nil) when the row no longer exists.
func (s *OfflineDataService) UpdateConsumption(ctx context.Context, id int64, patch map[string]interface{}) (*models.Consumption, error) {
	var existing models.Consumption
	if err := s.db.WithContext(ctx).First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	columns := stampPatch(patchColumns(patch))
	if err := s.db.WithContext(ctx).Model(&models.Consumption{}).Where("id = ?", id).Updates(columns).Error; err != nil {
		return nil, fmt.Errorf("failed to update consumption %d: %w", id, err)
	}

	var updated models.Consumption
	if err := s.db.WithContext(ctx).First(&updated, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotRetrievable
		}
		return nil, err
	}
	s.attachProduct(ctx, &updated)

	if err := s.enqueue(ctx, models.TableConsumptions, models.OpUpdate, updated.ID, &updated, updated.UserID); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteConsumption removes the row and queues a delete marker. Silent no-op
// when the row does not exist.
func (s *OfflineDataService) DeleteConsumption(ctx context.Context, id int64) error {
	var existing models.Consumption
	if err := s.db.WithContext(ctx).First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Consumption{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete consumption %d: %w", id, err)
	}
	return s.enqueue(ctx, models.TableConsumptions, models.OpDelete, id, nil, existing.UserID)
}

// GetConsumptions returns the mirrored consumptions for a user, each with its
// product snapshot attached.
func (s *OfflineDataService) GetConsumptions(ctx context.Context, userID int64) ([]*models.Consumption, error) {
	return s.GetConsumptionsByDateRange(ctx, userID, nil, nil)
}

// GetConsumptionsByDateRange returns the user's consumptions filtered by an
// optional date window. Pure read, no queue interaction.
func (s *OfflineDataService) GetConsumptionsByDateRange(ctx context.Context, userID int64, start, end *time.Time) ([]*models.Consumption, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if start != nil {
		query = query.Where("date >= ?", *start)
	}
	if end != nil {
		query = query.Where("date <= ?", *end)
	}

	var consumptions []*models.Consumption
	if err := query.Order("date").Find(&consumptions).Error; err != nil {
		return nil, err
	}
	s.attachProducts(ctx, consumptions)
	return consumptions, nil
}

// GetConsumptionsWithOfflineChanges blends mirrored consumptions with queued
// changes, same precedence rules as products.
func (s *OfflineDataService) GetConsumptionsWithOfflineChanges(ctx context.Context, userID int64) ([]*models.Consumption, error) {
	consumptions, err := s.GetConsumptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.pendingItems(ctx, models.TableConsumptions, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Consumption, len(consumptions))
	order := make([]int64, 0, len(consumptions)+len(items))
	for _, c := range consumptions {
		byID[c.ID] = c
		order = append(order, c.ID)
	}

	for _, item := range items {
		switch item.Operation {
		case models.OpDelete:
			delete(byID, item.RecordID)
		case models.OpCreate, models.OpUpdate:
			var c models.Consumption
			if err := json.Unmarshal(item.Data, &c); err != nil {
				s.log.WithError(err).WithField("queue_id", item.ID).Warn("skipping unreadable queue snapshot")
				continue
			}
			c.Modified = true
			if _, seen := byID[c.ID]; !seen {
				order = append(order, c.ID)
			}
			byID[c.ID] = &c
		}
	}

	result := make([]*models.Consumption, 0, len(byID))
	for _, id := range order {
		if c, ok := byID[id]; ok {
			if c.Product == nil {
				s.attachProduct(ctx, c)
			}
			result = append(result, c)
			delete(byID, id)
		}
	}
	return result, nil
}

// attachProduct fills the denormalized product snapshot from the mirror. A
// consumption whose product is missing locally gets a zero-macro placeholder
// so display code never dereferences nil.
func (s *OfflineDataService) attachProduct(ctx context.Context, c *models.Consumption) {
	s.attachProductTx(s.db.WithContext(ctx), c)
}

func (s *OfflineDataService) attachProductTx(tx *gorm.DB, c *models.Consumption) {
	var product models.Product
	err := tx.First(&product, "id = ?", c.ProductID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.WithError(err).WithField("product_id", c.ProductID).Warn("failed to load product snapshot")
		}
		c.Product = &models.Product{ID: c.ProductID, Name: "Unknown Product", UserID: c.UserID}
		return
	}
	c.Product = &product
}

func (s *OfflineDataService) attachProducts(ctx context.Context, consumptions []*models.Consumption) {
	if len(consumptions) == 0 {
		return
	}
	ids := make([]int64, 0, len(consumptions))
	for _, c := range consumptions {
		ids = append(ids, c.ProductID)
	}

	var products []*models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		s.log.WithError(err).Warn("failed to load product snapshots")
	}
	byID := make(map[int64]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, c := range consumptions {
		if p, ok := byID[c.ProductID]; ok {
			c.Product = p
		} else {
			c.Product = &models.Product{ID: c.ProductID, Name: "Unknown Product", UserID: c.UserID}
		}
	}
}

// --- Nutrition goals ---

// UpsertNutritionGoals updates the user's goals row if one exists, otherwise
// creates it. At most one active goals row exists per user.
func (s *OfflineDataService) UpsertNutritionGoals(ctx context.Context, goals *models.NutritionGoals) (*models.NutritionGoals, error) {
	var existing models.NutritionGoals
	err := s.db.WithContext(ctx).Where("user_id = ?", goals.UserID).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.WithContext(ctx).Create(goals).Error; err != nil {
			return nil, fmt.Errorf("failed to create nutrition goals: %w", err)
		}
		var created models.NutritionGoals
		if err := s.db.WithContext(ctx).First(&created, goals.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrRecordNotRetrievable
			}
			return nil, err
		}
		if err := s.enqueue(ctx, models.TableNutritionGoals, models.OpCreate, created.ID, &created, created.UserID); err != nil {
			return nil, err
		}
		return &created, nil
	}

	columns := stampPatch(map[string]interface{}{
		"daily_calories": goals.DailyCalories,
		"daily_protein":  goals.DailyProtein,
		"daily_fat":      goals.DailyFat,
		"daily_carbs":    goals.DailyCarbs,
		"goal_type":      goals.GoalType,
	})
	if err := s.db.WithContext(ctx).Model(&models.NutritionGoals{}).Where("id = ?", existing.ID).Updates(columns).Error; err != nil {
		return nil, fmt.Errorf("failed to update nutrition goals: %w", err)
	}

	var updated models.NutritionGoals
	if err := s.db.WithContext(ctx).First(&updated, existing.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotRetrievable
		}
		return nil, err
	}
	if err := s.enqueue(ctx, models.TableNutritionGoals, models.OpUpdate, updated.ID, &updated, updated.UserID); err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetNutritionGoals returns the user's goals row, or (nil, nil) when the user
// has none.
func (s *OfflineDataService) GetNutritionGoals(ctx context.Context, userID int64) (*models.NutritionGoals, error) {
	var goals models.NutritionGoals
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&goals).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &goals, nil
}

// GetNutritionGoalsWithOfflineChanges applies queued goal changes on top of
// the mirrored row.
func (s *OfflineDataService) GetNutritionGoalsWithOfflineChanges(ctx context.Context, userID int64) (*models.NutritionGoals, error) {
	goals, err := s.GetNutritionGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.pendingItems(ctx, models.TableNutritionGoals, userID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		switch item.Operation {
		case models.OpDelete:
			goals = nil
		case models.OpCreate, models.OpUpdate:
			var g models.NutritionGoals
			if err := json.Unmarshal(item.Data, &g); err != nil {
				s.log.WithError(err).WithField("queue_id", item.ID).Warn("skipping unreadable queue snapshot")
				continue
			}
			g.Modified = true
			goals = &g
		}
	}
	return goals, nil
}

// pendingItems returns the queued changes for a table and user, oldest first.
func (s *OfflineDataService) pendingItems(ctx context.Context, table string, userID int64) ([]*models.SyncQueueItem, error) {
	var items []*models.SyncQueueItem
	err := s.db.WithContext(ctx).
		Where("table_name = ? AND user_id = ?", table, userID).
		Order("timestamp, id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
