package infra

import (
	"fmt"

	"restopos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate for
// every engine model, then applies the idempotent SQL patches GORM cannot
// express (partial unique indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates all tables and applies schema patches.
// Integration tests call it directly against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Zone{},
		&model.Table{},
		&model.TableSession{},
		&model.Category{},
		&model.Item{},
		&model.ItemVariant{},
		&model.Addon{},
		&model.Ingredient{},
		&model.Recipe{},
		&model.StockMovement{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.Account{},
		&model.JournalEntry{},
		&model.JournalItem{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// handle on its own. Each statement is guarded so re-running is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// One active session per table. Session start relies on this as the
		// last guard when two scans race past the table lock.
		{"one active session per table", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_table_sessions_one_active
    ON table_sessions (table_id)
    WHERE is_active`},
		// Idempotent accounting: one entry per order reference.
		{"unique journal reference per tenant", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_journal_entries_tenant_reference
    ON journal_entries (tenant_id, reference)
    WHERE reference <> ''`},
		{"items stock non-negative", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_items_stock_nonneg') THEN
    ALTER TABLE items ADD CONSTRAINT chk_items_stock_nonneg CHECK (current_stock >= 0);
  END IF;
END $$`},
		{"ingredients stock non-negative", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_ingredients_stock_nonneg') THEN
    ALTER TABLE ingredients ADD CONSTRAINT chk_ingredients_stock_nonneg CHECK (current_stock >= 0);
  END IF;
END $$`},
		// Reconcile cron pages completed orders by (completed_at, id).
		{"completed orders cursor index", `
CREATE INDEX IF NOT EXISTS idx_orders_completed_cursor
    ON orders (completed_at, id)
    WHERE status = 'completed'`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
