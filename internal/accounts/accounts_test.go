package accounts

import (
	"errors"
	"testing"

	"github.com/ksred/klear-splitter/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	return NewService(decimal.NewFromInt(10000)).WithBcryptCost(bcrypt.MinCost)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestService()

	user, err := s.Register(" Alice@Example.com ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret123", string(user.PasswordHash))
	assert.True(t, decimal.NewFromInt(10000).Equal(user.Balance))

	got, err := s.Authenticate("alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.Authenticate("alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Authenticate("nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_Rejects(t *testing.T) {
	s := newTestService()
	_, err := s.Register("alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = s.Register("ALICE@example.com", "another1")
	require.Error(t, err)
	assert.True(t, types.IsConflict(err))
	assert.True(t, errors.Is(err, types.ErrEmailTaken))

	_, err = s.Register("not-an-email", "secret123")
	assert.True(t, types.IsValidation(err))

	_, err = s.Register("bob@example.com", "123")
	assert.True(t, types.IsValidation(err))
}

func TestBalanceDebitCredit(t *testing.T) {
	s := newTestService()
	user, err := s.Register("alice@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, s.Debit(user.ID, decimal.RequireFromString("1000.33")))
	bal, err := s.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "8999.67", bal.StringFixed(2))

	require.NoError(t, s.Credit(user.ID, decimal.RequireFromString("0.33")))
	bal, _ = s.Balance(user.ID)
	assert.Equal(t, "9000.00", bal.StringFixed(2))

	_, err = s.Balance("missing")
	assert.True(t, types.IsNotFound(err))
	assert.True(t, types.IsNotFound(s.Debit("missing", decimal.NewFromInt(1))))
}

func TestFindByID_ReturnsCopy(t *testing.T) {
	s := newTestService()
	user, err := s.Register("alice@example.com", "secret123")
	require.NoError(t, err)

	got, err := s.FindByID(user.ID)
	require.NoError(t, err)
	got.Balance = decimal.Zero

	bal, _ := s.Balance(user.ID)
	assert.True(t, decimal.NewFromInt(10000).Equal(bal))
}
