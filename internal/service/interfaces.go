package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gymfuel/gymfuel-sync/internal/models"
)

// IOfflineDataService is the low-level CRUD interface over the mirror store.
// Every mutation also appends a snapshot to the sync queue. Not-found on
// update/delete is soft: update returns (nil, nil), delete no-ops.
type IOfflineDataService interface {
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch map[string]interface{}) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	GetProducts(ctx context.Context, userID int64) ([]*models.Product, error)
	GetProductsWithOfflineChanges(ctx context.Context, userID int64) ([]*models.Product, error)

	CreateConsumption(ctx context.Context, consumption *models.Consumption) (*models.Consumption, error)
	UpdateConsumption(ctx context.Context, id int64, patch map[string]interface{}) (*models.Consumption, error)
	DeleteConsumption(ctx context.Context, id int64) error
	GetConsumptions(ctx context.Context, userID int64) ([]*models.Consumption, error)
	GetConsumptionsByDateRange(ctx context.Context, userID int64, start, end *time.Time) ([]*models.Consumption, error)
	GetConsumptionsWithOfflineChanges(ctx context.Context, userID int64) ([]*models.Consumption, error)

	UpsertNutritionGoals(ctx context.Context, goals *models.NutritionGoals) (*models.NutritionGoals, error)
	GetNutritionGoals(ctx context.Context, userID int64) (*models.NutritionGoals, error)
	GetNutritionGoalsWithOfflineChanges(ctx context.Context, userID int64) (*models.NutritionGoals, error)
}

// IUnifiedDataService is the stricter façade newer callers use instead of the
// offline service directly. Not-found on update/delete is a hard error, reads
// distinguish missing (nil, nil) from store failure, and per-record sync
// bookkeeping lives here.
type IUnifiedDataService interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch map[string]interface{}) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	BatchCreateProducts(ctx context.Context, products []*models.Product) ([]*models.Product, error)

	GetConsumption(ctx context.Context, id int64) (*models.Consumption, error)
	CreateConsumption(ctx context.Context, consumption *models.Consumption) (*models.Consumption, error)
	UpdateConsumption(ctx context.Context, id int64, patch map[string]interface{}) (*models.Consumption, error)
	DeleteConsumption(ctx context.Context, id int64) error
	BatchCreateConsumptions(ctx context.Context, consumptions []*models.Consumption) ([]*models.Consumption, error)

	MarkAsSynced(ctx context.Context, table string, id int64) error
	MarkAsSyncError(ctx context.Context, table string, id int64, syncErr error) error
	GetUnsyncedProducts(ctx context.Context, userID int64) ([]*models.Product, error)
	GetUnsyncedConsumptions(ctx context.Context, userID int64) ([]*models.Consumption, error)
	GetUnsyncedNutritionGoals(ctx context.Context, userID int64) ([]*models.NutritionGoals, error)
}

// RemoteAPI is the remote GymFuel API collaborator the drain step replays
// queued mutations against. Create and Update return the server's canonical
// row; Delete returns nothing. Fetches feed cache-fill.
type RemoteAPI interface {
	Create(ctx context.Context, table string, payload json.RawMessage) (json.RawMessage, error)
	Update(ctx context.Context, table string, id int64, payload json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, table string, id int64) error

	FetchProducts(ctx context.Context, userID int64) ([]*models.Product, error)
	FetchConsumptions(ctx context.Context, userID int64) ([]*models.Consumption, error)
	FetchNutritionGoals(ctx context.Context, userID int64) (*models.NutritionGoals, error)
}
