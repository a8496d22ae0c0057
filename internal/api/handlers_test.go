package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gymfuel/gymfuel-sync/config"
	"github.com/gymfuel/gymfuel-sync/internal/models"
	"github.com/gymfuel/gymfuel-sync/internal/netmon"
	"github.com/gymfuel/gymfuel-sync/internal/service"
	"github.com/gymfuel/gymfuel-sync/internal/testhelpers"
)

// echoRemote accepts every replayed mutation as-is and serves canned fetches.
type echoRemote struct {
	products []*models.Product
}

func (r *echoRemote) Create(_ context.Context, _ string, payload json.RawMessage) (json.RawMessage, error) {
	return payload, nil
}

func (r *echoRemote) Update(_ context.Context, _ string, _ int64, payload json.RawMessage) (json.RawMessage, error) {
	return payload, nil
}

func (r *echoRemote) Delete(_ context.Context, _ string, _ int64) error {
	return nil
}

func (r *echoRemote) FetchProducts(_ context.Context, _ int64) ([]*models.Product, error) {
	return r.products, nil
}

func (r *echoRemote) FetchConsumptions(_ context.Context, _ int64) ([]*models.Consumption, error) {
	return nil, nil
}

func (r *echoRemote) FetchNutritionGoals(_ context.Context, _ int64) (*models.NutritionGoals, error) {
	return nil, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *netmon.Monitor, *echoRemote) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupTestDatabase(t)
	log := testhelpers.NewTestLogger()
	offline := service.NewOfflineDataService(db, log)
	data := service.NewUnifiedDataService(db, offline, log)
	remote := &echoRemote{}
	monitor := netmon.NewMonitor()
	cfg := &config.Config{SyncMaxAttempts: 1, SyncBackoffMin: time.Millisecond, SyncBackoffMax: time.Millisecond}
	syncService := service.NewSyncService(db, remote, data, monitor, cfg, log)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	NewProductHandler(offline, data, syncService, monitor, log).RegisterRoutes(v1)
	NewConsumptionHandler(offline, data, syncService, monitor, log).RegisterRoutes(v1)
	NewGoalsHandler(offline, syncService, monitor, log).RegisterRoutes(v1)
	NewSyncHandler(syncService, monitor, log).RegisterRoutes(v1)

	return engine, db, monitor, remote
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCreateAndListProductsOffline(t *testing.T) {
	engine, _, monitor, _ := setupTestRouter(t)
	monitor.SetOnline(false)

	w := doJSON(t, engine, "POST", "/api/v1/products", map[string]interface{}{
		"name":     "Oats",
		"calories": 150,
		"protein":  6,
		"fat":      3,
		"carbs":    27,
		"userId":   1,
	})
	require.Equal(t, 201, w.Code)

	var created models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.False(t, created.Synced)

	w = doJSON(t, engine, "GET", "/api/v1/products?userId=1", nil)
	require.Equal(t, 200, w.Code)

	var response struct {
		Products []*models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Products, 1)
	assert.Equal(t, "Oats", response.Products[0].Name)
	assert.True(t, response.Products[0].Modified)
}

func TestListProductsRequiresUserID(t *testing.T) {
	engine, _, _, _ := setupTestRouter(t)

	w := doJSON(t, engine, "GET", "/api/v1/products", nil)
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "userId is required")
}

func TestListProductsRefreshesWhenOnline(t *testing.T) {
	engine, _, _, remote := setupTestRouter(t)

	remote.products = []*models.Product{{ID: 7, Name: "Whey", Calories: 380, UserID: 1}}

	w := doJSON(t, engine, "GET", "/api/v1/products?userId=1", nil)
	require.Equal(t, 200, w.Code)

	var response struct {
		Products []*models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Products, 1)
	assert.EqualValues(t, 7, response.Products[0].ID)
	assert.True(t, response.Products[0].Synced)
}

func TestUpdateProductNotFound(t *testing.T) {
	engine, _, _, _ := setupTestRouter(t)

	w := doJSON(t, engine, "PUT", "/api/v1/products/999", map[string]interface{}{"name": "ghost"})
	assert.Equal(t, 404, w.Code)
	assert.Contains(t, w.Body.String(), "Product with id 999 not found")
}

func TestDeleteConsumptionNotFound(t *testing.T) {
	engine, _, _, _ := setupTestRouter(t)

	w := doJSON(t, engine, "DELETE", "/api/v1/consumptions/999", nil)
	assert.Equal(t, 404, w.Code)
	assert.Contains(t, w.Body.String(), "Consumption with id 999 not found")
}

func TestCreateConsumptionAssignsTemporaryID(t *testing.T) {
	engine, _, monitor, _ := setupTestRouter(t)
	monitor.SetOnline(false)

	w := doJSON(t, engine, "POST", "/api/v1/consumptions", map[string]interface{}{
		"productId": 1,
		"amount":    80,
		"userId":    1,
	})
	require.Equal(t, 201, w.Code)

	var created models.Consumption
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Negative(t, created.ID)
	require.NotNil(t, created.Product)
}

func TestGoalsRoundTrip(t *testing.T) {
	engine, _, monitor, _ := setupTestRouter(t)
	monitor.SetOnline(false)

	w := doJSON(t, engine, "GET", "/api/v1/goals?userId=1", nil)
	assert.Equal(t, 404, w.Code)

	w = doJSON(t, engine, "PUT", "/api/v1/goals", map[string]interface{}{
		"userId":        1,
		"dailyCalories": 2200,
		"dailyProtein":  160,
		"goalType":      "gain",
	})
	require.Equal(t, 200, w.Code)

	w = doJSON(t, engine, "GET", "/api/v1/goals?userId=1", nil)
	require.Equal(t, 200, w.Code)

	var goals models.NutritionGoals
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &goals))
	assert.EqualValues(t, 2200, goals.DailyCalories)
	assert.Equal(t, models.GoalGain, goals.GoalType)
}

func TestBatchCreateProducts(t *testing.T) {
	engine, db, monitor, _ := setupTestRouter(t)
	monitor.SetOnline(false)

	w := doJSON(t, engine, "POST", "/api/v1/products/batch", []map[string]interface{}{
		{"name": "one", "calories": 100, "userId": 1},
		{"name": "two", "calories": 200, "userId": 1},
	})
	require.Equal(t, 201, w.Code)

	var response struct {
		Created  int               `json:"created"`
		Products []*models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Created)

	var count int64
	require.NoError(t, db.Model(&models.SyncQueueItem{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSyncStatusAndDrain(t *testing.T) {
	engine, _, _, _ := setupTestRouter(t)

	// report offline, queue a mutation
	w := doJSON(t, engine, "POST", "/api/v1/network", map[string]interface{}{"online": false})
	require.Equal(t, 200, w.Code)

	w = doJSON(t, engine, "POST", "/api/v1/products", map[string]interface{}{
		"name": "Oats", "calories": 150, "userId": 1,
	})
	require.Equal(t, 201, w.Code)

	w = doJSON(t, engine, "GET", "/api/v1/sync/status", nil)
	require.Equal(t, 200, w.Code)
	var status service.SyncStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Online)
	assert.EqualValues(t, 1, status.Pending)

	// draining offline is refused
	w = doJSON(t, engine, "POST", "/api/v1/sync/drain", nil)
	assert.Equal(t, 503, w.Code)

	w = doJSON(t, engine, "POST", "/api/v1/network", map[string]interface{}{"online": true})
	require.Equal(t, 200, w.Code)

	// manual drain flushes the queue
	w = doJSON(t, engine, "POST", "/api/v1/sync/drain", nil)
	require.Equal(t, 200, w.Code)
	var result service.DrainResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Replayed)

	w = doJSON(t, engine, "GET", "/api/v1/sync/status", nil)
	require.Equal(t, 200, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Online)
	assert.Zero(t, status.Pending)
}

func TestNetworkStatusValidation(t *testing.T) {
	engine, _, _, _ := setupTestRouter(t)

	w := doJSON(t, engine, "POST", "/api/v1/network", map[string]interface{}{})
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "online is required")
}
