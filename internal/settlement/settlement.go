package settlement

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/openbid/auction-api/internal/types"
	"github.com/openbid/auction-api/pkg/apperrors"
	"github.com/openbid/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = fmt.Errorf("transaction: %w", apperrors.ErrNotFound)

// Service creates and reads settlement transactions for won auctions.
type Service struct {
	db      *Database
	feeRate decimal.Decimal
}

func NewService(gormDB *gorm.DB, feeRate float64) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		feeRate: decimal.NewFromFloat(feeRate),
	}
}

// SettleAuction records the transaction for a won auction: winning amount,
// platform fee and seller payout. Idempotent on the auction id, so the
// lifecycle clock may call it again after a failure without creating a
// duplicate.
func (s *Service) SettleAuction(auction *types.Auction, winnerID string, amount float64) error {
	logger := log.With().
		Str("auction_id", auction.AuctionID).
		Str("service", "settlement").
		Logger()

	existing, err := s.db.GetTransactionByAuctionID(auction.AuctionID)
	if err != nil {
		return fmt.Errorf("failed to check existing transaction: %w", err)
	}
	if existing != nil {
		return nil
	}

	// Fee arithmetic in decimal so the split is exact to the cent.
	gross := decimal.NewFromFloat(amount)
	fee := gross.Mul(s.feeRate).Round(2)
	sellerAmount := gross.Sub(fee)

	txn := &Transaction{
		TransactionID: "TXN_" + uuid.New().String(),
		AuctionID:     auction.AuctionID,
		BuyerID:       winnerID,
		SellerID:      auction.SellerID,
		Amount:        amount,
		PlatformFee:   fee.InexactFloat64(),
		SellerAmount:  sellerAmount.InexactFloat64(),
		Status:        StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.db.CreateTransaction(txn); err != nil {
		// The unique index on auction_id turns a concurrent double-settle
		// into a constraint error; re-check before reporting failure.
		if existing, checkErr := s.db.GetTransactionByAuctionID(auction.AuctionID); checkErr == nil && existing != nil {
			return nil
		}
		logger.Error().Err(err).Msg("failed to create transaction")
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	logger.Info().
		Str("transaction_id", txn.TransactionID).
		Str("buyer_id", winnerID).
		Str("seller_id", auction.SellerID).
		Float64("amount", amount).
		Float64("platform_fee", txn.PlatformFee).
		Float64("seller_amount", txn.SellerAmount).
		Msg("transaction created")

	return nil
}

// GetTransaction retrieves a transaction by ID
func (s *Service) GetTransaction(transactionID string) (*Transaction, error) {
	txn, err := s.db.GetTransaction(transactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

// GetUserTransactions retrieves all transactions involving a user
func (s *Service) GetUserTransactions(userID string) ([]Transaction, error) {
	return s.db.GetUserTransactions(userID)
}

// GetDB exposes the data layer for the background processor.
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for transaction endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetUserTransactionsHandler handles GET requests for the authenticated
// user's transactions
func (h *GinHandlers) GetUserTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		txns, err := h.service.GetUserTransactions(userID)
		response.Handle(c, txns, err)
	}
}

// GetTransactionHandler handles GET requests for a single transaction
func (h *GinHandlers) GetTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn, err := h.service.GetTransaction(c.Param("transaction_id"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		// Transactions are visible only to their participants.
		userID := c.GetString("userID")
		if txn.BuyerID != userID && txn.SellerID != userID && c.GetString("role") != "admin" {
			response.NotFound(c, "Resource not found")
			return
		}

		response.Success(c, txn)
	}
}
