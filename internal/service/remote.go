package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/gymfuel/gymfuel-sync/config"
	"github.com/gymfuel/gymfuel-sync/internal/models"
)

type ctxKey int

const idempotencyKeyCtx ctxKey = iota

// WithIdempotencyKey returns a context that makes the remote client attach
// the given key as an Idempotency-Key header, letting the server de-duplicate
// a mutation that was applied but whose response never reached us.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx, key)
}

// RemoteError is a non-2xx response from the remote API.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote API returned %d: %s", e.StatusCode, e.Body)
}

// HTTPRemoteClient talks to the remote GymFuel API over JSON HTTP. Every
// request carries the device id; replayed mutations additionally carry their
// queue item's idempotency key.
type HTTPRemoteClient struct {
	baseURL  string
	token    string
	deviceID string
	http     *http.Client
	log      *logrus.Logger
}

var _ RemoteAPI = (*HTTPRemoteClient)(nil)

// NewHTTPRemoteClient creates a new HTTPRemoteClient instance
func NewHTTPRemoteClient(cfg *config.Config, deviceID string, log *logrus.Logger) *HTTPRemoteClient {
	return &HTTPRemoteClient{
		baseURL:  strings.TrimRight(cfg.RemoteBaseURL, "/"),
		token:    cfg.RemoteToken,
		deviceID: deviceID,
		http:     &http.Client{Timeout: cfg.RemoteTimeout},
		log:      log,
	}
}

// pathFor maps a queue table name to its remote resource path.
func pathFor(table string) (string, error) {
	switch table {
	case models.TableProducts:
		return "/products", nil
	case models.TableConsumptions:
		return "/consumptions", nil
	case models.TableNutritionGoals:
		return "/goals", nil
	default:
		return "", fmt.Errorf("unknown table %q", table)
	}
}

// checkToken fails fast when the configured bearer token is a JWT whose exp
// claim has passed. Retrying an expired token wastes the whole backoff budget.
func (c *HTTPRemoteClient) checkToken() error {
	if strings.Count(c.token, ".") != 2 {
		return nil // opaque token, nothing to inspect
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return ErrAuthTokenExpired
	}
	return nil
}

func (c *HTTPRemoteClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.checkToken(); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", c.deviceID)
	if key, ok := ctx.Value(idempotencyKeyCtx).(string); ok && key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// Create replays a queued create and returns the server's canonical row.
func (c *HTTPRemoteClient) Create(ctx context.Context, table string, payload json.RawMessage) (json.RawMessage, error) {
	path, err := pathFor(table)
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Update replays a queued update and returns the server's canonical row.
func (c *HTTPRemoteClient) Update(ctx context.Context, table string, id int64, payload json.RawMessage) (json.RawMessage, error) {
	path, err := pathFor(table)
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", path, id), payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Delete replays a queued delete. A 404 means the row is already gone on the
// server, which is the outcome the queue item wanted.
func (c *HTTPRemoteClient) Delete(ctx context.Context, table string, id int64) error {
	path, err := pathFor(table)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", path, id), nil)
	var remoteErr *RemoteError
	if err != nil && errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// FetchProducts pulls the user's products for cache-fill.
func (c *HTTPRemoteClient) FetchProducts(ctx context.Context, userID int64) ([]*models.Product, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products?userId=%d", userID), nil)
	if err != nil {
		return nil, err
	}
	var products []*models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

// FetchConsumptions pulls the user's consumptions for cache-fill.
func (c *HTTPRemoteClient) FetchConsumptions(ctx context.Context, userID int64) ([]*models.Consumption, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/consumptions?userId=%d", userID), nil)
	if err != nil {
		return nil, err
	}
	var consumptions []*models.Consumption
	if err := json.Unmarshal(data, &consumptions); err != nil {
		return nil, fmt.Errorf("failed to decode consumptions: %w", err)
	}
	return consumptions, nil
}

// FetchNutritionGoals pulls the user's goals row, (nil, nil) when the user
// has none yet.
func (c *HTTPRemoteClient) FetchNutritionGoals(ctx context.Context, userID int64) (*models.NutritionGoals, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/goals?userId=%d", userID), nil)
	if err != nil {
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
		return nil, nil
	}
	var goals models.NutritionGoals
	if err := json.Unmarshal(data, &goals); err != nil {
		return nil, fmt.Errorf("failed to decode nutrition goals: %w", err)
	}
	return &goals, nil
}
