package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor advances pending transactions to completion in the background.
// Payment capture itself is an external collaborator; this loop stands in
// for its callback and keeps retrying transactions it couldn't verify.
type Processor struct {
	db           *Database
	processDelay time.Duration
}

func NewProcessor(db *Database, processDelay time.Duration) *Processor {
	return &Processor{
		db:           db,
		processDelay: processDelay,
	}
}

// Start begins the transaction processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_processor").Logger()
	logger.Info().Msg("starting settlement processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement processor")
			return
		case <-ticker.C:
			if err := p.processPendingTransactions(); err != nil {
				logger.Error().Err(err).Msg("failed to process pending transactions")
			}
		}
	}
}

func (p *Processor) processPendingTransactions() error {
	logger := log.With().Str("component", "settlement_processor").Logger()

	txns, err := p.db.GetPendingTransactions()
	if err != nil {
		return err
	}

	if len(txns) > 0 {
		logger.Info().Int("pending_count", len(txns)).Msg("processing pending transactions")
	}

	for _, txn := range txns {
		if !p.verifyTransfer(&txn) {
			// Left PENDING; picked up again next cycle.
			logger.Warn().
				Str("transaction_id", txn.TransactionID).
				Msg("transfer not yet verified")
			continue
		}

		txn.Status = StatusCompleted
		txn.UpdatedAt = time.Now()
		if err := p.db.UpdateTransaction(&txn); err != nil {
			logger.Error().
				Err(err).
				Str("transaction_id", txn.TransactionID).
				Msg("failed to update transaction status")
			continue
		}

		logger.Info().
			Str("transaction_id", txn.TransactionID).
			Float64("amount", txn.Amount).
			Msg("transaction completed")
	}

	return nil
}

// verifyTransfer simulates the payment collaborator's confirmation.
func (p *Processor) verifyTransfer(txn *Transaction) bool {
	// For simulation, succeed 95% of the time
	return time.Now().UnixNano()%100 < 95
}
