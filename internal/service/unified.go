package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gymfuel/gymfuel-sync/internal/models"
)

// UnifiedDataService is the single entry point application code should use
// instead of the offline service directly. It keeps the offline service's
// write-through queueing but is stricter about missing records, retries
// transient store failures, and owns the per-record sync bookkeeping.
type UnifiedDataService struct {
	db      *gorm.DB
	offline *OfflineDataService
	log     *logrus.Logger

	retryAttempts int
	retryDelay    time.Duration
}

var _ IUnifiedDataService = (*UnifiedDataService)(nil)

// NewUnifiedDataService creates a new UnifiedDataService instance
func NewUnifiedDataService(db *gorm.DB, offline *OfflineDataService, log *logrus.Logger) *UnifiedDataService {
	return &UnifiedDataService{
		db:            db,
		offline:       offline,
		log:           log,
		retryAttempts: 3,
		retryDelay:    50 * time.Millisecond,
	}
}

// withRetry retries transient store failures. Validation failures are never
// retried; they would fail identically every time.
func (s *UnifiedDataService) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(s.retryDelay)
		}
		err = fn()
		if err == nil || errors.Is(err, ErrUserIDRequired) {
			return err
		}
	}
	return err
}

// --- Products ---

// GetProduct returns (nil, nil) when the product does not exist; store
// failures are returned as errors.
func (s *UnifiedDataService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// CreateProduct creates a product through the offline service, retrying
// transient store failures.
func (s *UnifiedDataService) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	var created *models.Product
	err := s.withRetry(func() error {
		var err error
		created, err = s.offline.CreateProduct(ctx, product)
		return err
	})
	return created, err
}

// UpdateProduct patches a product. Unlike the offline service, a missing
// record here is a hard error.
func (s *UnifiedDataService) UpdateProduct(ctx context.Context, id int64, patch map[string]interface{}) (*models.Product, error) {
	updated, err := s.offline.UpdateProduct(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("Product with id %d not found", id)
	}
	return updated, nil
}

// DeleteProduct removes a product. A missing record is a hard error.
func (s *UnifiedDataService) DeleteProduct(ctx context.Context, id int64) error {
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("Product with id %d not found", id)
	}
	return s.offline.DeleteProduct(ctx, id)
}

// BatchCreateProducts bulk-inserts products and reads back the rows the
// insert reported ids for. Items whose insert failed are excluded from the
// result; a shorter result is partial success, not an error.
func (s *UnifiedDataService) BatchCreateProducts(ctx context.Context, products []*models.Product) ([]*models.Product, error) {
	ids := make([]int64, 0, len(products))
	var userID int64
	for _, p := range products {
		if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
			s.log.WithError(err).WithField("name", p.Name).Warn("batch create: product insert failed")
			continue
		}
		if p.ID == 0 {
			continue
		}
		ids = append(ids, p.ID)
		userID = p.UserID
	}
	if len(ids) == 0 {
		return []*models.Product{}, nil
	}

	var created []*models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&created).Error; err != nil {
		return nil, err
	}
	for _, p := range created {
		if err := s.offline.enqueue(ctx, models.TableProducts, models.OpCreate, p.ID, p, p.UserID); err != nil {
			return nil, err
		}
	}
	s.log.WithFields(logrus.Fields{"requested": len(products), "created": len(created), "user_id": userID}).
		Debug("batch created products")
	return created, nil
}

// --- Consumptions ---

// GetConsumption returns (nil, nil) when the consumption does not exist.
func (s *UnifiedDataService) GetConsumption(ctx context.Context, id int64) (*models.Consumption, error) {
	var consumption models.Consumption
	if err := s.db.WithContext(ctx).First(&consumption, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	s.offline.attachProduct(ctx, &consumption)
	return &consumption, nil
}

// CreateConsumption creates a consumption through the offline service,
// retrying transient store failures.
func (s *UnifiedDataService) CreateConsumption(ctx context.Context, consumption *models.Consumption) (*models.Consumption, error) {
	var created *models.Consumption
	err := s.withRetry(func() error {
		var err error
		created, err = s.offline.CreateConsumption(ctx, consumption)
		return err
	})
	return created, err
}

// UpdateConsumption patches a consumption; missing records are a hard error.
func (s *UnifiedDataService) UpdateConsumption(ctx context.Context, id int64, patch map[string]interface{}) (*models.Consumption, error) {
	updated, err := s.offline.UpdateConsumption(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("Consumption with id %d not found", id)
	}
	return updated, nil
}

// DeleteConsumption removes a consumption; missing records are a hard error.
func (s *UnifiedDataService) DeleteConsumption(ctx context.Context, id int64) error {
	existing, err := s.GetConsumption(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("Consumption with id %d not found", id)
	}
	return s.offline.DeleteConsumption(ctx, id)
}

// BatchCreateConsumptions bulk-inserts consumptions with the same
// partial-success contract as BatchCreateProducts.
func (s *UnifiedDataService) BatchCreateConsumptions(ctx context.Context, consumptions []*models.Consumption) ([]*models.Consumption, error) {
	ids := make([]int64, 0, len(consumptions))
	for _, c := range consumptions {
		if c.ID == 0 {
			c.ID = newLocalID()
		}
		if c.Date.IsZero() {
			c.Date = time.Now()
		}
		if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
			s.log.WithError(err).WithField("product_id", c.ProductID).Warn("batch create: consumption insert failed")
			continue
		}
		if c.ID == 0 {
			continue
		}
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return []*models.Consumption{}, nil
	}

	var created []*models.Consumption
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&created).Error; err != nil {
		return nil, err
	}
	s.offline.attachProducts(ctx, created)
	for _, c := range created {
		if err := s.offline.enqueue(ctx, models.TableConsumptions, models.OpCreate, c.ID, c, c.UserID); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// --- Sync bookkeeping ---

// MarkAsSynced records that a mirror row now matches the server.
func (s *UnifiedDataService) MarkAsSynced(ctx context.Context, table string, id int64) error {
	model, err := modelFor(table)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(map[string]interface{}{
		"synced":         true,
		"sync_timestamp": now,
		"sync_error":     nil,
	}).Error
}

// MarkAsSyncError records a replay failure on the mirror row. The row stays
// unsynced so the next drain pass picks it up again.
func (s *UnifiedDataService) MarkAsSyncError(ctx context.Context, table string, id int64, syncErr error) error {
	model, err := modelFor(table)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(map[string]interface{}{
		"synced":     false,
		"sync_error": syncErr.Error(),
	}).Error
}

// GetUnsyncedProducts returns the user's products awaiting sync, the work
// list for the next drain pass.
func (s *UnifiedDataService) GetUnsyncedProducts(ctx context.Context, userID int64) ([]*models.Product, error) {
	var products []*models.Product
	if err := s.db.WithContext(ctx).Where("user_id = ? AND synced = ?", userID, false).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// GetUnsyncedConsumptions returns the user's consumptions awaiting sync.
func (s *UnifiedDataService) GetUnsyncedConsumptions(ctx context.Context, userID int64) ([]*models.Consumption, error) {
	var consumptions []*models.Consumption
	if err := s.db.WithContext(ctx).Where("user_id = ? AND synced = ?", userID, false).Order("id").Find(&consumptions).Error; err != nil {
		return nil, err
	}
	return consumptions, nil
}

// GetUnsyncedNutritionGoals returns the user's goals rows awaiting sync. At
// most one row exists per user, but the slice keeps the shape uniform across
// the unsynced listings.
func (s *UnifiedDataService) GetUnsyncedNutritionGoals(ctx context.Context, userID int64) ([]*models.NutritionGoals, error) {
	var goals []*models.NutritionGoals
	if err := s.db.WithContext(ctx).Where("user_id = ? AND synced = ?", userID, false).Order("id").Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

// modelFor maps a queue table name to its mirror model.
func modelFor(table string) (interface{}, error) {
	switch table {
	case models.TableProducts:
		return &models.Product{}, nil
	case models.TableConsumptions:
		return &models.Consumption{}, nil
	case models.TableNutritionGoals:
		return &models.NutritionGoals{}, nil
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}
