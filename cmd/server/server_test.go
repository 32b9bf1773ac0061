package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/klear-splitter/internal/config"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *client) call(method, path string, body interface{}, headers map[string]string) (int, apiResponse) {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(c.t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var res apiResponse
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w.Code, res
}

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Auth.InternalAPIKey = "internal-key"
	cfg.RateLimit.AuthPerMinute = 0
	cfg.RateLimit.OrdersPerMinute = 0
	cfg.Storage.Driver = driver
	cfg.Storage.LogLevel = "silent"
	cfg.Market.EnforceHours = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServer_EndToEnd(t *testing.T) {
	for _, driver := range []string{config.StorageMemory, config.StorageSQLite} {
		t.Run(driver, func(t *testing.T) {
			a, err := buildApp(testConfig(t, driver))
			require.NoError(t, err)
			t.Cleanup(func() { _ = a.closeStorage() })

			c := &client{t: t, router: a.router}

			status, res := c.call(http.MethodGet, "/health", nil, nil)
			require.Equal(t, http.StatusOK, status)
			assert.True(t, res.Success)

			status, res = c.call(http.MethodGet, "/api/v1/stocks", nil, nil)
			require.Equal(t, http.StatusOK, status)
			assert.Contains(t, string(res.Data), "AMZN")

			status, _ = c.call(http.MethodGet, "/api/v1/orders", nil, nil)
			require.Equal(t, http.StatusUnauthorized, status)

			status, res = c.call(http.MethodPost, "/api/v1/auth/signup",
				map[string]string{"email": "alice@example.com", "password": "secret123"}, nil)
			require.Equal(t, http.StatusCreated, status)
			var token struct {
				AccessToken string `json:"access_token"`
			}
			require.NoError(t, json.Unmarshal(res.Data, &token))
			c.token = token.AccessToken

			buyReq := map[string]interface{}{
				"amount":    "1000",
				"direction": "BUY",
				"portfolio": []map[string]interface{}{
					{"instrument_id": "a1b2c3d4-0001-4000-8000-000000000001", "percentage": "60"},
					{"instrument_id": "a1b2c3d4-0002-4000-8000-000000000002", "percentage": "40"},
				},
			}
			status, res = c.call(http.MethodPost, "/api/v1/orders", buyReq, map[string]string{"Idempotency-Key": "buy-1"})
			require.Equal(t, http.StatusCreated, status, string(res.Data))
			var order struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(res.Data, &order))

			status, res = c.call(http.MethodPost, "/api/v1/orders", buyReq, map[string]string{"Idempotency-Key": "buy-1"})
			require.Equal(t, http.StatusCreated, status)
			assert.Contains(t, string(res.Data), order.ID)

			sellReq := map[string]interface{}{
				"amount":    "300",
				"direction": "SELL",
				"portfolio": []map[string]interface{}{
					{"instrument_id": "a1b2c3d4-0001-4000-8000-000000000001", "percentage": "100"},
				},
			}
			status, _ = c.call(http.MethodPost, "/api/v1/orders", sellReq, nil)
			require.Equal(t, http.StatusCreated, status)

			status, res = c.call(http.MethodGet, "/api/v1/auth/me", nil, nil)
			require.Equal(t, http.StatusOK, status)
			assert.Contains(t, string(res.Data), `"balance":"9300"`)

			status, res = c.call(http.MethodGet, "/api/v1/orders/holdings", nil, nil)
			require.Equal(t, http.StatusOK, status)
			var summary struct {
				Holdings []struct {
					Symbol string `json:"symbol"`
					Shares string `json:"shares"`
				} `json:"holdings"`
				NetAmount string `json:"net_amount"`
			}
			require.NoError(t, json.Unmarshal(res.Data, &summary))
			require.Len(t, summary.Holdings, 2)
			assert.Equal(t, "AAPL", summary.Holdings[0].Symbol)
			assert.Equal(t, "3", summary.Holdings[0].Shares)
			assert.Equal(t, "700", summary.NetAmount)

			status, res = c.call(http.MethodGet, "/api/v1/orders", nil, nil)
			require.Equal(t, http.StatusOK, status)
			var orders []json.RawMessage
			require.NoError(t, json.Unmarshal(res.Data, &orders))
			assert.Len(t, orders, 2)

			status, _ = c.call(http.MethodGet, "/api/v1/orders/"+order.ID, nil, nil)
			assert.Equal(t, http.StatusOK, status)

			status, _ = c.call(http.MethodPost, "/api/v1/internal/idempotency/sweep", nil, nil)
			assert.Equal(t, http.StatusUnauthorized, status)

			status, res = c.call(http.MethodPost, "/api/v1/internal/idempotency/sweep", nil,
				map[string]string{"X-Internal-Key": "internal-key"})
			require.Equal(t, http.StatusOK, status)
			assert.Contains(t, string(res.Data), `"removed":0`)
		})
	}
}

func TestScheduleCommand(t *testing.T) {
	for _, k := range []string{"PORT", "ENV", "DEBUG", "MARKET_TIMEZONE", "STORAGE_DRIVER"} {
		t.Setenv(k, "")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"schedule", "--at", "2024-03-15T16:00:00-04:00"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		scheduleAt = ""
	})

	require.NoError(t, rootCmd.Execute())
	fields := strings.Fields(out.String())
	require.Len(t, fields, 3)
	assert.Equal(t, "PENDING", fields[1])
	assert.Equal(t, "2024-03-18", fields[2])
}
