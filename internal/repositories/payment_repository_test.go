package repositories

import (
	"testing"
	"time"

	"chikondi_backend/internal/models"
	"chikondi_backend/internal/testutils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkSettledUpdatesPendingPayment(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payment_records" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewPaymentRepository(db)
	won, err := repo.MarkSettled("tx-1", models.PaymentStatusCompleted, nil)

	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSettledNoopWhenAlreadyCompleted(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// условие status <> 'completed' не совпало ни с одной строкой
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payment_records" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := NewPaymentRepository(db)
	won, err := repo.MarkSettled("tx-1", models.PaymentStatusCompleted, nil)

	require.NoError(t, err)
	assert.False(t, won)
}

func TestFindByTxRefNotFound(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "payment_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tx_ref"}))

	repo := NewPaymentRepository(db)
	_, err := repo.FindByTxRef("tx-ghost")

	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestFindStalePendingFiltersByAgeAndStatus(t *testing.T) {
	db, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	cutoff := time.Now().Add(-10 * time.Minute)
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE status = \$1 AND created_at < \$2`).
		WithArgs(string(models.PaymentStatusPending), cutoff, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tx_ref", "user_id", "status"}).
			AddRow("id-1", "tx-old", "user-1", "pending"))

	repo := NewPaymentRepository(db)
	stale, err := repo.FindStalePending(cutoff, 50)

	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "tx-old", stale[0].TxRef)
}
