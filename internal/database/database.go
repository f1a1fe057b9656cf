package database

import (
	"github.com/technicaldee/locallift/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when running behind connection
// poolers (PgBouncer, Supabase, Render).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// AutoMigrate runs migrations for all ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Business{},
		&domain.FundingPool{},
		&domain.Investment{},
		&domain.EscrowAccount{},
		&domain.Disbursement{},
		&domain.PoolEvent{},
	)
}
