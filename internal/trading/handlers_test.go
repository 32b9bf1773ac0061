package trading

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-splitter/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *response.Error `json:"error"`
}

func newHandlerRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewGinHandlers(f.svc)

	r := gin.New()
	orders := r.Group("/orders")
	orders.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set("userID", user)
		}
	})
	orders.POST("", h.CreateOrderHandler())
	orders.GET("", h.ListOrdersHandler())
	orders.GET("/holdings", h.HoldingsHandler())
	orders.GET("/:order_id", h.GetOrderHandler())
	r.POST("/internal/idempotency/sweep", h.SweepIdempotencyHandler())
	return r
}

func do(t *testing.T, r http.Handler, method, path, user, key, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

const buyBody = `{
	"amount": "1000",
	"direction": "BUY",
	"portfolio": [
		{"instrument_id": "a1b2c3d4-0001-4000-8000-000000000001", "percentage": 60},
		{"instrument_id": "a1b2c3d4-0002-4000-8000-000000000002", "percentage": 40}
	]
}`

func TestCreateOrderHandler(t *testing.T) {
	f := newFixture(t)
	r := newHandlerRouter(f)

	status, env := do(t, r, http.MethodPost, "/orders", f.alice, "key-1", buyBody)
	require.Equal(t, http.StatusCreated, status)
	require.True(t, env.Success)

	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Items  []struct {
			Symbol string `json:"symbol"`
			Amount string `json:"amount"`
			Shares string `json:"shares"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "AAPL", order.Items[0].Symbol)
	assert.Equal(t, "600", order.Items[0].Amount)
	assert.Equal(t, "6", order.Items[0].Shares)
	assert.Equal(t, "SCHEDULED", order.Status)

	t.Run("replay returns the same order", func(t *testing.T) {
		status, env := do(t, r, http.MethodPost, "/orders", f.alice, "key-1", buyBody)
		require.Equal(t, http.StatusCreated, status)
		var again struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &again))
		assert.Equal(t, order.ID, again.ID)
	})

	t.Run("key reuse by another user is a conflict", func(t *testing.T) {
		status, env := do(t, r, http.MethodPost, "/orders", f.bob, "key-1", buyBody)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, response.ErrCodeConflict, env.Error.Code)
	})

	t.Run("get by id", func(t *testing.T) {
		status, _ := do(t, r, http.MethodGet, "/orders/"+order.ID, f.alice, "", "")
		assert.Equal(t, http.StatusOK, status)

		status, env := do(t, r, http.MethodGet, "/orders/"+order.ID, f.bob, "", "")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, response.ErrCodeNotFound, env.Error.Code)
	})

	t.Run("list and holdings", func(t *testing.T) {
		status, env := do(t, r, http.MethodGet, "/orders", f.alice, "", "")
		require.Equal(t, http.StatusOK, status)
		var list []json.RawMessage
		require.NoError(t, json.Unmarshal(env.Data, &list))
		assert.Len(t, list, 1)

		status, env = do(t, r, http.MethodGet, "/orders/holdings", f.alice, "", "")
		require.Equal(t, http.StatusOK, status)
		var summary struct {
			Holdings      []json.RawMessage `json:"holdings"`
			TotalInvested string            `json:"total_invested"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &summary))
		assert.Len(t, summary.Holdings, 2)
		assert.Equal(t, "1000", summary.TotalInvested)
	})
}

func TestCreateOrderHandler_Errors(t *testing.T) {
	f := newFixture(t)
	r := newHandlerRouter(f)

	tests := []struct {
		name   string
		user   string
		body   string
		status int
		code   string
	}{
		{"unauthenticated", "", buyBody, http.StatusUnauthorized, response.ErrCodeUnauthorized},
		{"not json", f.alice, `{`, http.StatusBadRequest, response.ErrCodeBadRequest},
		{"bad direction", f.alice, `{"amount": 10, "direction": "HOLD", "portfolio": []}`, http.StatusBadRequest, response.ErrCodeValidationFailed},
		{"empty portfolio", f.alice, `{"amount": 10, "direction": "BUY", "portfolio": []}`, http.StatusBadRequest, response.ErrCodeValidationFailed},
		{"bad sum", f.alice, `{"amount": 10, "direction": "BUY", "portfolio": [{"instrument_id": "a1b2c3d4-0001-4000-8000-000000000001", "percentage": 50}]}`, http.StatusBadRequest, response.ErrCodeValidationFailed},
		{"insufficient balance", f.alice, `{"amount": 20000, "direction": "BUY", "portfolio": [{"instrument_id": "a1b2c3d4-0001-4000-8000-000000000001", "percentage": 100}]}`, http.StatusConflict, response.ErrCodeConflict},
		{"insufficient shares", f.alice, `{"amount": 100, "direction": "SELL", "portfolio": [{"instrument_id": "a1b2c3d4-0001-4000-8000-000000000001", "percentage": 100}]}`, http.StatusConflict, response.ErrCodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, r, http.MethodPost, "/orders", tt.user, "", tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestSweepIdempotencyHandler(t *testing.T) {
	f := newFixture(t)
	r := newHandlerRouter(f)

	status, _ := do(t, r, http.MethodPost, "/orders", f.alice, "key-1", buyBody)
	require.Equal(t, http.StatusCreated, status)
	f.clock.Advance(DefaultConfig().IdempotencyTTL)

	status, env := do(t, r, http.MethodPost, "/internal/idempotency/sweep", "", "", "")
	require.Equal(t, http.StatusOK, status)
	var res struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 1, res.Removed)
}
