package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InTxCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID := uuid.New()
	amount := decimal.RequireFromString("10")
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE organizations SET wallet_balance`).
		WithArgs(amount, orgID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = NewStore(mock).InTx(context.Background(), func(tx Store) error {
		return tx.Organizations().DebitWallet(context.Background(), orgID, amount)
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InTxRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID := uuid.New()
	amount := decimal.RequireFromString("10")
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE organizations SET wallet_balance`).
		WithArgs(amount, orgID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = NewStore(mock).InTx(context.Background(), func(tx Store) error {
		return tx.Organizations().DebitWallet(context.Background(), orgID, amount)
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InTxBeginFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err = NewStore(mock).InTx(context.Background(), func(Store) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "too many connections")
	assert.False(t, called)
}

func TestStore_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT 1`).WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, NewStore(mock).Ping(context.Background()))
}
