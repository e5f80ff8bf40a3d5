package lifecycle

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

// GetActivatable returns approved pending auctions whose start time has
// passed.
func (d *Database) GetActivatable(now time.Time) ([]types.Auction, error) {
	var auctions []types.Auction
	err := d.db.
		Where("status = ? AND approved = ? AND start_time <= ?", types.AuctionStatusPending, true, now).
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

// GetExpiredActive returns active auctions whose end time has passed.
func (d *Database) GetExpiredActive(now time.Time) ([]types.Auction, error) {
	var auctions []types.Auction
	err := d.db.
		Where("status = ? AND end_time <= ?", types.AuctionStatusActive, now).
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

// ActivateAuction flips PENDING to ACTIVE. The status guard makes concurrent
// sweeps race safely: only one caller sees a true return.
func (d *Database) ActivateAuction(auctionID string) (bool, error) {
	result := d.db.Model(&types.Auction{}).
		Where("auction_id = ? AND status = ?", auctionID, types.AuctionStatusPending).
		Updates(map[string]interface{}{
			"status":     types.AuctionStatusActive,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FinalizeAuction flips ACTIVE to ENDED and records the winner (empty when
// no winner). Guarded the same way as activation, so an auction can be
// finalized at most once no matter how many sweeps overlap.
func (d *Database) FinalizeAuction(auctionID, winnerID string) (bool, error) {
	result := d.db.Model(&types.Auction{}).
		Where("auction_id = ? AND status = ?", auctionID, types.AuctionStatusActive).
		Updates(map[string]interface{}{
			"status":     types.AuctionStatusEnded,
			"winner_id":  winnerID,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetHighestBid returns the top bid for an auction, or nil when none exist.
func (d *Database) GetHighestBid(auctionID string) (*types.Bid, error) {
	var bid types.Bid
	err := d.db.
		Where("auction_id = ?", auctionID).
		Order("amount DESC").
		First(&bid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}

// GetEndedUnsettled returns ended auctions with a winner but no transaction
// yet. Settlement failures surface here again on the next sweep.
func (d *Database) GetEndedUnsettled() ([]types.Auction, error) {
	var auctions []types.Auction
	err := d.db.
		Where("status = ? AND winner_id <> ? AND auction_id NOT IN (SELECT auction_id FROM transactions)",
			types.AuctionStatusEnded, "").
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}
