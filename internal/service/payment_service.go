package service

import (
	"context"
	"time"

	"restopos/internal/apierror"
	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// PaymentService settles orders. Full settlement completes the order and
// closes its table session in the same transaction.
type PaymentService interface {
	Pay(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.PayRequest) (*dto.PayResponse, error)
}

type paymentService struct {
	tx       repository.Transactor
	orders   repository.OrderRepository
	tables   repository.TableRepository
	payments repository.PaymentRepository
	sessions SessionService
	hooks    []Hook
}

func NewPaymentService(
	tx repository.Transactor,
	orders repository.OrderRepository,
	tables repository.TableRepository,
	payments repository.PaymentRepository,
	sessions SessionService,
	hooks []Hook,
) PaymentService {
	return &paymentService{
		tx:       tx,
		orders:   orders,
		tables:   tables,
		payments: payments,
		sessions: sessions,
		hooks:    hooks,
	}
}

var payableStatuses = []string{
	model.OrderOpen,
	model.OrderConfirmed,
	model.OrderPreparing,
	model.OrderReady,
	model.OrderServed,
}

var paymentMethods = map[string]bool{"cash": true, "card": true, "upi": true, "online": true}

func (s *paymentService) Pay(ctx context.Context, actor Actor, orderID uuid.UUID, req dto.PayRequest) (*dto.PayResponse, error) {
	ctx, span := tracer.Start(ctx, "order.pay", trace.WithAttributes(
		attribute.String("tenant_id", actor.TenantID.String()),
		attribute.String("order_id", orderID.String()),
	))
	defer span.End()

	if !paymentMethods[req.Method] {
		return nil, apierror.Invalid("invalid payment method %q", req.Method)
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, apierror.Invalid("amount must be greater than zero")
	}

	var (
		resp      dto.PayResponse
		from      string
		completed bool
	)
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		// Closing the session touches the table row, and tables lock before
		// orders everywhere else.
		peek, err := s.orders.FindByIDTx(tx, actor.TenantID, orderID)
		if err != nil {
			return apierror.FromDB(err, "order not found")
		}
		if peek.TableID != nil {
			if _, err := s.tables.LockByIDTx(tx, actor.TenantID, *peek.TableID); err != nil {
				return apierror.FromDB(err, "table not found")
			}
		}

		o, err := s.orders.LockTx(tx, actor.TenantID, orderID)
		if err != nil {
			return apierror.FromDB(err, "order not found")
		}
		if o.Status == model.OrderCompleted || o.Status == model.OrderCancelled {
			return apierror.Invalid("order already closed")
		}
		from = o.Status

		paid, err := s.payments.SumSuccessfulTx(tx, actor.TenantID, orderID)
		if err != nil {
			return err
		}
		outstanding := o.TotalAmount.Sub(paid)
		amount := outstanding
		if req.Amount != nil {
			amount = *req.Amount
		}
		if !amount.IsPositive() {
			return apierror.Invalid("nothing to pay")
		}

		p := &model.Payment{
			TenantID:      actor.TenantID,
			OrderID:       orderID,
			Amount:        amount,
			Method:        req.Method,
			Status:        model.PaymentSuccess,
			TransactionID: req.TransactionID,
			ActorID:       actor.UserID,
		}
		if err := s.payments.CreateTx(tx, p); err != nil {
			return err
		}
		paid = paid.Add(amount)

		status := o.Status
		if paid.GreaterThanOrEqual(o.TotalAmount) {
			now := time.Now().UTC()
			ok, err := s.orders.UpdateStatusTx(tx, actor.TenantID, orderID, payableStatuses, model.OrderCompleted, &now)
			if err != nil {
				return err
			}
			if !ok {
				return apierror.Invalid("order already closed")
			}
			completed = true
			status = model.OrderCompleted
			if o.SessionID != nil {
				if err := s.sessions.CloseTx(tx, actor.TenantID, *o.SessionID, now); err != nil {
					return err
				}
			}
		}

		resp = dto.PayResponse{
			Status:      "paid",
			PaymentID:   p.ID.String(),
			OrderStatus: status,
			PaidAmount:  paid,
			Outstanding: decimal.Max(o.TotalAmount.Sub(paid), decimal.Zero),
			Change:      decimal.Max(paid.Sub(o.TotalAmount), decimal.Zero),
		}
		return nil
	})
	if err != nil {
		err = apierror.FromDB(err, "order not found")
		span.RecordError(err)
		span.SetStatus(codes.Error, apierror.KindOf(err).String())
		return nil, err
	}

	log.Info().
		Str("tenant_id", actor.TenantID.String()).
		Str("order_id", orderID.String()).
		Str("method", req.Method).
		Str("paid", resp.PaidAmount.String()).
		Bool("completed", completed).
		Msg("payment recorded")

	if completed {
		runHooks(ctx, s.hooks, Transition{
			Kind:     TransitionCompleted,
			TenantID: actor.TenantID,
			Actor:    actor,
			OrderID:  orderID,
			From:     from,
			To:       model.OrderCompleted,
		})
	}
	return &resp, nil
}
