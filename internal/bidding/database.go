package bidding

import (
	"errors"
	"time"

	"github.com/openbid/auction-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetAuction(auctionID string) (*types.Auction, error) {
	var auction types.Auction
	if err := d.db.Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

// AdmitBid commits an accepted bid: the auction row is advanced with a
// compare-and-swap on (status, current_bid, bid_count) and the bid row is
// inserted, both in one transaction. A false return means another writer got
// there first (a concurrent bid, or the lifecycle clock ending the auction)
// and nothing was written; the caller re-reads and re-validates.
func (d *Database) AdmitBid(auction *types.Auction, bid *types.Bid) (bool, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return false, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	result := tx.Model(&types.Auction{}).
		Where("auction_id = ? AND status = ? AND current_bid = ? AND bid_count = ?",
			auction.AuctionID, types.AuctionStatusActive, auction.CurrentBid, auction.BidCount).
		Updates(map[string]interface{}{
			"current_bid": bid.Amount,
			"bid_count":   auction.BidCount + 1,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		tx.Rollback()
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return false, nil
	}

	if err := tx.Create(bid).Error; err != nil {
		tx.Rollback()
		return false, err
	}

	return true, tx.Commit().Error
}

// GetBidsByAuction returns the bid history, newest first.
func (d *Database) GetBidsByAuction(auctionID string) ([]types.Bid, error) {
	var bids []types.Bid
	if err := d.db.Where("auction_id = ?", auctionID).Order("amount DESC").Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}
