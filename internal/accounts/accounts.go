// Package accounts holds registered users and their cash balances.
package accounts

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/klear-splitter/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

const moneyDecimals = 2

// User is a registered account
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	Balance      decimal.Decimal
	CreatedAt    time.Time
}

// Service is the user registry and balance ledger
type Service struct {
	mu             sync.RWMutex
	users          map[string]*User // by id
	emails         map[string]string
	initialBalance decimal.Decimal
	bcryptCost     int
}

// NewService creates an empty registry. New users start with initialBalance.
func NewService(initialBalance decimal.Decimal) *Service {
	return &Service{
		users:          make(map[string]*User),
		emails:         make(map[string]string),
		initialBalance: initialBalance.Round(moneyDecimals),
		bcryptCost:     bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost
func (s *Service) WithBcryptCost(cost int) *Service {
	s.bcryptCost = cost
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user with a bcrypt-hashed password
func (s *Service) Register(email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, types.NewValidationError(types.ErrMalformedRequest, "a valid email is required")
	}
	if len(password) < 6 {
		return nil, types.NewValidationError(types.ErrMalformedRequest, "password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[email]; taken {
		return nil, types.NewConflictError(types.ErrEmailTaken, "Email already registered")
	}

	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Balance:      s.initialBalance,
		CreatedAt:    time.Now(),
	}
	s.users[user.ID] = user
	s.emails[email] = user.ID

	log.Info().Str("user_id", user.ID).Msg("user registered")
	return copyUser(user), nil
}

// Authenticate checks an email/password pair
func (s *Service) Authenticate(email, password string) (*User, error) {
	s.mu.RLock()
	id, ok := s.emails[normalizeEmail(email)]
	var user *User
	if ok {
		user = copyUser(s.users[id])
	}
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByID returns a copy of the user
func (s *Service) FindByID(userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, userNotFound(userID)
	}
	return copyUser(user), nil
}

// Balance returns the user's cash balance
func (s *Service) Balance(userID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return decimal.Zero, userNotFound(userID)
	}
	return user.Balance, nil
}

// Debit subtracts amount from the balance. Sufficiency is the caller's concern.
func (s *Service) Debit(userID string, amount decimal.Decimal) error {
	return s.adjust(userID, amount.Neg())
}

// Credit adds amount to the balance
func (s *Service) Credit(userID string, amount decimal.Decimal) error {
	return s.adjust(userID, amount)
}

func (s *Service) adjust(userID string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return userNotFound(userID)
	}
	user.Balance = user.Balance.Add(delta).Round(moneyDecimals)
	return nil
}

func userNotFound(userID string) error {
	return types.NewNotFoundError(types.ErrUserNotFound, fmt.Sprintf("user %s not found", userID))
}

func copyUser(u *User) *User {
	c := *u
	return &c
}
