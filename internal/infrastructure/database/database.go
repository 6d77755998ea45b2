package database

import (
	"context"
	"strings"

	"portfel-backend/internal/domain"

	"github.com/glebarez/sqlite"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Open opens a GORM DB from DSN. Postgres URLs go through pgx's database/sql adapter with the
// shopspring decimal codec registered on every connection; "sqlite://<path>" opens a local file
// (or ":memory:") for development.
// Postgres connections use the simple protocol to avoid 42P05 ("prepared statement already
// exists") behind poolers such as PgBouncer.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return OpenSQLite(strings.TrimPrefix(dsn, sqlitePrefix), cfg)
	}

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	sqlDB := stdlib.OpenDB(*connCfg, stdlib.OptionAfterConnect(func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}))
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), cfg)
}

// OpenSQLite opens a SQLite database with a single connection, which serializes writers the
// way row locks do on Postgres and keeps ":memory:" databases shared across queries.
func OpenSQLite(path string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// AutoMigrate creates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.AssetType{}, &domain.Asset{}, &domain.Portfolio{}, &domain.Holding{}, &domain.Deal{})
}

// ForUpdate locks the rows read by the next statement until the transaction ends
// (SELECT ... FOR UPDATE). SQLite has no row locks and drops the clause.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
