package types

import (
	"time"

	"gorm.io/gorm"
)

// Auction statuses. Transitions are monotonic: an auction never leaves ENDED
// or CANCELLED.
const (
	AuctionStatusDraft     = "DRAFT"
	AuctionStatusPending   = "PENDING"
	AuctionStatusActive    = "ACTIVE"
	AuctionStatusEnded     = "ENDED"
	AuctionStatusCancelled = "CANCELLED"
)

// Auction is owned by the auction store. CurrentBid, BidCount and WinnerID
// are mutated only through guarded updates in bid admission and the
// lifecycle clock.
type Auction struct {
	gorm.Model   `json:"-"`
	AuctionID    string    `gorm:"uniqueIndex" json:"auction_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `gorm:"index" json:"category"`
	StartPrice   float64   `json:"start_price"`
	ReservePrice float64   `json:"reserve_price"` // 0 means no reserve
	CurrentBid   float64   `json:"current_bid"`
	BidCount     int       `json:"bid_count"`
	SellerID     string    `gorm:"index" json:"seller_id"`
	WinnerID     string    `json:"winner_id,omitempty"` // set only at close
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `gorm:"index" json:"status"`
	Approved     bool      `json:"approved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasReserve reports whether a reserve price is set.
func (a *Auction) HasReserve() bool {
	return a.ReservePrice > 0
}

// ReserveMet reports whether the current bid satisfies the reserve. Auctions
// without a reserve always meet it.
func (a *Auction) ReserveMet() bool {
	return !a.HasReserve() || a.CurrentBid >= a.ReservePrice
}

// Bid is immutable once created. Bids are never edited or deleted, only
// superseded by higher bids; the full history is the audit trail.
type Bid struct {
	gorm.Model `json:"-"`
	BidID      string    `gorm:"uniqueIndex" json:"bid_id"`
	AuctionID  string    `gorm:"index" json:"auction_id"`
	BidderID   string    `gorm:"index" json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	Amount     float64   `json:"amount"`
	PlacedAt   time.Time `json:"placed_at"`
	CreatedAt  time.Time `json:"created_at"`
}
