package repository

import (
	"context"

	"restopos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountingRepository interface {
	// EnsureAccountTx returns the tenant's account with a.Code, inserting a
	// when it does not exist yet.
	EnsureAccountTx(tx *gorm.DB, a *model.Account) (*model.Account, error)
	// FindEntryByReferenceTx returns nil, nil when no entry carries reference.
	FindEntryByReferenceTx(tx *gorm.DB, tenantID uuid.UUID, reference string) (*model.JournalEntry, error)
	FindEntryByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*model.JournalEntry, error)
	CreateEntryTx(tx *gorm.DB, e *model.JournalEntry) error
}

type accountingRepo struct{ db *gorm.DB }

func NewAccountingRepository(db *gorm.DB) AccountingRepository {
	return &accountingRepo{db: db}
}

func (r *accountingRepo) EnsureAccountTx(tx *gorm.DB, a *model.Account) (*model.Account, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "code"}},
		DoNothing: true,
	}).Create(a).Error
	if err != nil {
		return nil, err
	}
	var acc model.Account
	err = tx.Where("tenant_id = ? AND code = ?", a.TenantID, a.Code).First(&acc).Error
	return &acc, err
}

func (r *accountingRepo) FindEntryByReferenceTx(tx *gorm.DB, tenantID uuid.UUID, reference string) (*model.JournalEntry, error) {
	return findEntry(tx, tenantID, reference)
}

func (r *accountingRepo) FindEntryByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*model.JournalEntry, error) {
	return findEntry(r.db.WithContext(ctx), tenantID, reference)
}

func findEntry(db *gorm.DB, tenantID uuid.UUID, reference string) (*model.JournalEntry, error) {
	var entries []model.JournalEntry
	err := db.Preload("Items.Account").
		Where("tenant_id = ? AND reference = ?", tenantID, reference).
		Limit(1).
		Find(&entries).Error
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (r *accountingRepo) CreateEntryTx(tx *gorm.DB, e *model.JournalEntry) error {
	return tx.Create(e).Error
}
