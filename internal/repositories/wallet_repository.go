package repositories

import (
	"errors"
	"strings"

	"chikondi_backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrWalletTxNotFound = errors.New("wallet transaction not found")

	// ErrAlreadyCredited - кошелек уже пополнен по этому tx_ref.
	// Для вызывающего это не ошибка, а сигнал идемпотентности.
	ErrAlreadyCredited = errors.New("wallet already credited for tx_ref")
)

type WalletRepository interface {
	FindByTxRef(txRef string) (*models.WalletTransaction, error)
	FindByUser(userID string, page, pageSize int) ([]models.WalletTransaction, int64, error)
	GetBalance(userID string) (int64, error)

	// CreditTopup - атомарное зачисление: запись в леджер и инкремент
	// баланса в одной транзакции. Повторный вызов с тем же tx_ref
	// возвращает ErrAlreadyCredited, баланс не меняется.
	CreditTopup(userID, txRef string, txType models.WalletTxType, gross, fee int64, metadata datatypes.JSON) (*models.WalletTransaction, error)
}

type WalletRepositoryImpl struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &WalletRepositoryImpl{db: db}
}

func (r *WalletRepositoryImpl) FindByTxRef(txRef string) (*models.WalletTransaction, error) {
	var tx models.WalletTransaction
	err := r.db.First(&tx, "tx_ref = ?", txRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletTxNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *WalletRepositoryImpl) FindByUser(userID string, page, pageSize int) ([]models.WalletTransaction, int64, error) {
	query := r.db.Model(&models.WalletTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txs []models.WalletTransaction
	err := query.
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&txs).Error

	return txs, total, err
}

func (r *WalletRepositoryImpl) GetBalance(userID string) (int64, error) {
	var balance int64
	err := r.db.Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Select("wallet_balance").
		Scan(&balance).Error
	return balance, err
}

func (r *WalletRepositoryImpl) CreditTopup(userID, txRef string, txType models.WalletTxType, gross, fee int64, metadata datatypes.JSON) (*models.WalletTransaction, error) {
	walletTx := &models.WalletTransaction{
		UserID:      userID,
		Type:        txType,
		GrossAmount: gross,
		Fee:         fee,
		NetAmount:   gross - fee,
		Status:      "completed",
		TxRef:       txRef,
		Metadata:    metadata,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.WalletTransaction
		err := tx.First(&existing, "tx_ref = ?", txRef).Error
		if err == nil {
			return ErrAlreadyCredited
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(walletTx).Error; err != nil {
			// уникальный индекс по tx_ref ловит гонку двух
			// параллельных зачислений, проигравший откатывается
			if isDuplicateKeyError(err) {
				return ErrAlreadyCredited
			}
			return err
		}

		return tx.Model(&models.Profile{}).
			Where("user_id = ?", userID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", walletTx.NetAmount)).Error
	})
	if err != nil {
		return nil, err
	}

	return walletTx, nil
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx без переводчика ошибок отдает SQLSTATE 23505 текстом
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
