package repository

import (
	"context"

	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	CreateTx(tx *gorm.DB, p *model.Payment) error
	SumSuccessfulTx(tx *gorm.DB, tenantID, orderID uuid.UUID) (decimal.Decimal, error)
	ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]model.Payment, error)
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) CreateTx(tx *gorm.DB, p *model.Payment) error {
	return tx.Create(p).Error
}

func (r *paymentRepo) SumSuccessfulTx(tx *gorm.DB, tenantID, orderID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.Model(&model.Payment{}).
		Select("SUM(amount)").
		Where("tenant_id = ? AND order_id = ? AND status = ?", tenantID, orderID, model.PaymentSuccess).
		Scan(&sum).Error
	if err != nil || !sum.Valid {
		return decimal.Zero, err
	}
	return sum.Decimal, nil
}

func (r *paymentRepo) ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("created_at").
		Find(&payments).Error
	return payments, err
}
