package settlement

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateTransaction(txn *Transaction) error {
	return d.db.Create(txn).Error
}

func (d *Database) GetTransaction(transactionID string) (*Transaction, error) {
	var txn Transaction
	if err := d.db.Where("transaction_id = ?", transactionID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (d *Database) GetTransactionByAuctionID(auctionID string) (*Transaction, error) {
	var txn Transaction
	if err := d.db.Where("auction_id = ?", auctionID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (d *Database) UpdateTransaction(txn *Transaction) error {
	return d.db.Save(txn).Error
}

func (d *Database) GetPendingTransactions() ([]Transaction, error) {
	var txns []Transaction
	if err := d.db.Where("status = ?", StatusPending).Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// GetUserTransactions returns transactions where the user is buyer or seller.
func (d *Database) GetUserTransactions(userID string) ([]Transaction, error) {
	var txns []Transaction
	err := d.db.
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
