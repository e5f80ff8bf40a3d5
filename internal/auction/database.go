package auction

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

func (d *Database) CreateAuction(auction *types.Auction) error {
	return d.db.Create(auction).Error
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

// ListAuctions applies the optional category and status filters and paginates
// newest-first.
func (d *Database) ListAuctions(filter ListFilter) ([]types.Auction, int64, error) {
	query := d.db.Model(&types.Auction{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var auctions []types.Auction
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(filter.PageSize).Find(&auctions).Error; err != nil {
		return nil, 0, err
	}

	return auctions, total, nil
}

// SetApproved marks a pending auction ready for activation.
func (d *Database) SetApproved(auctionID string) error {
	return d.db.Model(&types.Auction{}).
		Where("auction_id = ?", auctionID).
		Updates(map[string]interface{}{
			"approved":   true,
			"updated_at": time.Now(),
		}).Error
}

// TransitionStatus moves an auction between statuses with a guard on the
// current status; the boolean reports whether this caller won the update.
func (d *Database) TransitionStatus(auctionID string, from []string, to string) (bool, error) {
	result := d.db.Model(&types.Auction{}).
		Where("auction_id = ? AND status IN ?", auctionID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
