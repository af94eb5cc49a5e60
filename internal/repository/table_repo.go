package repository

import (
	"context"
	"time"

	"restopos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TableRepository interface {
	LockByQRTokenTx(tx *gorm.DB, tenantID uuid.UUID, qrToken string) (*model.Table, error)
	LockByIDTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Table, error)
	UpdateStatusTx(tx *gorm.DB, tenantID, id uuid.UUID, status string) error

	// FindActiveSessionTx returns nil, nil when the table has no active session.
	FindActiveSessionTx(tx *gorm.DB, tenantID, tableID uuid.UUID) (*model.TableSession, error)
	CreateSessionTx(tx *gorm.DB, s *model.TableSession) error
	FindSessionTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.TableSession, error)
	LockSessionTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.TableSession, error)
	CloseSessionTx(tx *gorm.DB, tenantID, id uuid.UUID, at time.Time) error
	FindSessionByToken(ctx context.Context, tenantID uuid.UUID, accessToken string) (*model.TableSession, error)
}

type tableRepo struct{ db *gorm.DB }

func NewTableRepository(db *gorm.DB) TableRepository { return &tableRepo{db: db} }

func (r *tableRepo) LockByQRTokenTx(tx *gorm.DB, tenantID uuid.UUID, qrToken string) (*model.Table, error) {
	var t model.Table
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND qr_token = ?", tenantID, qrToken).
		First(&t).Error
	return &t, err
}

func (r *tableRepo) LockByIDTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Table, error) {
	var t model.Table
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&t).Error
	return &t, err
}

func (r *tableRepo) UpdateStatusTx(tx *gorm.DB, tenantID, id uuid.UUID, status string) error {
	return tx.Model(&model.Table{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("status", status).Error
}

func (r *tableRepo) FindActiveSessionTx(tx *gorm.DB, tenantID, tableID uuid.UUID) (*model.TableSession, error) {
	var sessions []model.TableSession
	err := tx.Where("tenant_id = ? AND table_id = ? AND is_active", tenantID, tableID).
		Limit(1).Find(&sessions).Error
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return &sessions[0], nil
}

func (r *tableRepo) CreateSessionTx(tx *gorm.DB, s *model.TableSession) error {
	return tx.Create(s).Error
}

func (r *tableRepo) FindSessionTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.TableSession, error) {
	var s model.TableSession
	err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&s).Error
	return &s, err
}

func (r *tableRepo) LockSessionTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.TableSession, error) {
	var s model.TableSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&s).Error
	return &s, err
}

func (r *tableRepo) CloseSessionTx(tx *gorm.DB, tenantID, id uuid.UUID, at time.Time) error {
	return tx.Model(&model.TableSession{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{
			"is_active": false,
			"end_time":  at,
		}).Error
}

func (r *tableRepo) FindSessionByToken(ctx context.Context, tenantID uuid.UUID, accessToken string) (*model.TableSession, error) {
	var s model.TableSession
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND access_token = ?", tenantID, accessToken).
		First(&s).Error
	return &s, err
}
