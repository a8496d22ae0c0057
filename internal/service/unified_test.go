package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gymfuel/gymfuel-sync/internal/models"
	"github.com/gymfuel/gymfuel-sync/internal/testhelpers"
)

func newUnifiedService(t *testing.T) (*UnifiedDataService, *gorm.DB) {
	t.Helper()
	db := testhelpers.SetupTestDatabase(t)
	log := testhelpers.NewTestLogger()
	offline := NewOfflineDataService(db, log)
	return NewUnifiedDataService(db, offline, log), db
}

func TestGetProductMissingIsSoft(t *testing.T) {
	svc, _ := newUnifiedService(t)

	product, err := svc.GetProduct(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestUpdateProductMissingIsHard(t *testing.T) {
	svc, _ := newUnifiedService(t)

	_, err := svc.UpdateProduct(context.Background(), 999, map[string]interface{}{"name": "ghost"})
	require.Error(t, err)
	assert.Equal(t, "Product with id 999 not found", err.Error())
}

func TestDeleteProductMissingIsHard(t *testing.T) {
	svc, _ := newUnifiedService(t)

	err := svc.DeleteProduct(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, "Product with id 999 not found", err.Error())
}

func TestUpdateConsumptionMissingIsHard(t *testing.T) {
	svc, _ := newUnifiedService(t)

	_, err := svc.UpdateConsumption(context.Background(), 999, map[string]interface{}{"amount": 120})
	require.Error(t, err)
	assert.Equal(t, "Consumption with id 999 not found", err.Error())
}

func TestCreateProductDoesNotRetryValidation(t *testing.T) {
	svc, db := newUnifiedService(t)

	_, err := svc.CreateProduct(context.Background(), &models.Product{Name: "Oats"})
	assert.ErrorIs(t, err, ErrUserIDRequired)

	var count int64
	require.NoError(t, db.Model(&models.SyncQueueItem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBatchCreateProductsPartialSuccess(t *testing.T) {
	svc, db := newUnifiedService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Product{ID: 10, Name: "taken", UserID: 1}).Error)

	created, err := svc.BatchCreateProducts(ctx, []*models.Product{
		{Name: "one", Calories: 100, UserID: 1},
		{ID: 10, Name: "collides", UserID: 1}, // duplicate primary key
		{Name: "three", Calories: 300, UserID: 1},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "one", created[0].Name)
	assert.Equal(t, "three", created[1].Name)

	// only the successful inserts are queued
	var items []*models.SyncQueueItem
	require.NoError(t, db.Order("id").Find(&items).Error)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, models.OpCreate, item.Operation)
	}
}

func TestBatchCreateConsumptionsAssignsLocalIDs(t *testing.T) {
	svc, db := newUnifiedService(t)

	created, err := svc.BatchCreateConsumptions(context.Background(), []*models.Consumption{
		{ProductID: 1, Amount: 100, UserID: 1},
		{ProductID: 2, Amount: 50, UserID: 1},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, c := range created {
		assert.True(t, c.IsLocalOnly())
		assert.False(t, c.Date.IsZero())
	}

	var count int64
	require.NoError(t, db.Model(&models.SyncQueueItem{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestMarkAsSyncedClearsError(t *testing.T) {
	svc, db := newUnifiedService(t)
	ctx := context.Background()

	msg := "remote API returned 500: boom"
	require.NoError(t, db.Create(&models.Product{ID: 1, Name: "A", UserID: 1, SyncMeta: models.SyncMeta{SyncError: &msg}}).Error)

	require.NoError(t, svc.MarkAsSynced(ctx, models.TableProducts, 1))

	var product models.Product
	require.NoError(t, db.First(&product, 1).Error)
	assert.True(t, product.Synced)
	require.NotNil(t, product.SyncTimestamp)
	assert.Nil(t, product.SyncError)
}

func TestMarkAsSyncErrorKeepsRowUnsynced(t *testing.T) {
	svc, db := newUnifiedService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Product{ID: 1, Name: "A", UserID: 1, SyncMeta: models.SyncMeta{Synced: true}}).Error)

	require.NoError(t, svc.MarkAsSyncError(ctx, models.TableProducts, 1, assert.AnError))

	var product models.Product
	require.NoError(t, db.First(&product, 1).Error)
	assert.False(t, product.Synced)
	require.NotNil(t, product.SyncError)
	assert.Equal(t, assert.AnError.Error(), *product.SyncError)
}

func TestGetUnsyncedFiltersByUserAndFlag(t *testing.T) {
	svc, db := newUnifiedService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Product{ID: 1, Name: "pending", UserID: 1}).Error)
	require.NoError(t, db.Create(&models.Product{ID: 2, Name: "done", UserID: 1, SyncMeta: models.SyncMeta{Synced: true}}).Error)
	require.NoError(t, db.Create(&models.Product{ID: 3, Name: "other user", UserID: 2}).Error)

	unsynced, err := svc.GetUnsyncedProducts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "pending", unsynced[0].Name)
}

func TestGetUnsyncedNutritionGoals(t *testing.T) {
	svc, db := newUnifiedService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.NutritionGoals{ID: 1, UserID: 1, DailyCalories: 2000}).Error)
	require.NoError(t, db.Create(&models.NutritionGoals{ID: 2, UserID: 2, DailyCalories: 1800, SyncMeta: models.SyncMeta{Synced: true}}).Error)
	require.NoError(t, db.Create(&models.NutritionGoals{ID: 3, UserID: 3, DailyCalories: 2500}).Error)

	unsynced, err := svc.GetUnsyncedNutritionGoals(ctx, 1)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.EqualValues(t, 2000, unsynced[0].DailyCalories)

	unsynced, err = svc.GetUnsyncedNutritionGoals(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}
