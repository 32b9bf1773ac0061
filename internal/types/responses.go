package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenResponse is returned by signup and login
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	Expiration  time.Time `json:"expiration"`
}

// ProfileResponse is returned by the "me" endpoint
type ProfileResponse struct {
	UserID  string          `json:"user_id"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SweepResponse reports how many idempotency records a sweep removed
type SweepResponse struct {
	Removed   int       `json:"removed"`
	Timestamp time.Time `json:"timestamp"`
}
