package database

import (
	"github.com/openbid/auction-api/internal/auth"
	"github.com/openbid/auction-api/internal/settlement"
	"github.com/openbid/auction-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase opens the store and migrates the schema. The handle is owned
// by the caller: constructed once at startup, injected into services, closed
// on shutdown. Nothing reads it from package state.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&auth.User{},
		&types.Auction{},
		&types.Bid{},
		&settlement.Transaction{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
