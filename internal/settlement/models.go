package settlement

import (
	"time"

	"gorm.io/gorm"
)

// Transaction statuses
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusRefunded  = "REFUNDED"
)

// Transaction records the settlement of a won auction. The unique index on
// AuctionID enforces at most one transaction per closed auction.
type Transaction struct {
	gorm.Model    `json:"-"`
	TransactionID string    `gorm:"uniqueIndex" json:"transaction_id"`
	AuctionID     string    `gorm:"uniqueIndex" json:"auction_id"`
	BuyerID       string    `gorm:"index" json:"buyer_id"`
	SellerID      string    `gorm:"index" json:"seller_id"`
	Amount        float64   `json:"amount"`
	PlatformFee   float64   `json:"platform_fee"`
	SellerAmount  float64   `json:"seller_amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
