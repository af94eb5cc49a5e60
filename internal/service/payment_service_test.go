package service_test

import (
	"context"
	"testing"

	"restopos/internal/apierror"
	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// seatAndOrder opens a session on a fresh table and places one round on it.
func seatAndOrder(t *testing.T, e *engine, price string, qty int) (model.Table, *dto.OrderResponse) {
	t.Helper()
	table := e.store.addTable(e.tenantID, "T"+uuid.NewString()[:4])
	item := e.store.addItem(e.tenantID, "Thali", price, nil)
	_, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken})
	require.NoError(t, err)
	order, err := e.orders.Create(context.Background(), e.actor, dineIn(table.ID, line(item.ID, qty)))
	require.NoError(t, err)
	return table, order
}

func TestPay_FullSettlementCompletesAndClosesSession(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table, order := seatAndOrder(t, e, "59", 2)
	orderID := uuid.MustParse(order.ID)
	assert.Equal(t, model.TableOccupied, e.store.table(table.ID).Status)

	resp, err := e.payments.Pay(context.Background(), e.actor, orderID, dto.PayRequest{Method: "cash"})
	require.NoError(t, err)

	assert.Equal(t, "paid", resp.Status)
	assert.Equal(t, model.OrderCompleted, resp.OrderStatus)
	assert.True(t, resp.PaidAmount.Equal(decimal.NewFromInt(118)))
	assert.True(t, resp.Outstanding.IsZero())

	stored := e.store.order(orderID)
	assert.Equal(t, model.OrderCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	sess := e.store.session(*stored.SessionID)
	assert.False(t, sess.IsActive)
	assert.NotNil(t, sess.EndTime)
	assert.Equal(t, model.TableAvailable, e.store.table(table.ID).Status)

	ts := e.hook.transitions()
	last := ts[len(ts)-1]
	assert.Equal(t, service.TransitionCompleted, last.Kind)
	assert.Equal(t, model.OrderOpen, last.From)
	assert.Equal(t, model.OrderCompleted, last.To)
}

func TestPay_PartialThenRest(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	_, order := seatAndOrder(t, e, "50", 2)
	orderID := uuid.MustParse(order.ID)

	resp, err := e.payments.Pay(context.Background(), e.actor, orderID, dto.PayRequest{Method: "card", Amount: amount("40")})
	require.NoError(t, err)
	assert.Equal(t, model.OrderOpen, resp.OrderStatus)
	assert.True(t, resp.Outstanding.Equal(decimal.NewFromInt(60)))
	assert.Len(t, e.hook.transitions(), 1, "partial payment runs no hooks")

	resp, err = e.payments.Pay(context.Background(), e.actor, orderID, dto.PayRequest{Method: "upi"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, resp.OrderStatus)
	assert.True(t, resp.PaidAmount.Equal(decimal.NewFromInt(100)))
}

func TestPay_TenderAboveTotalCompletesWithChange(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table, order := seatAndOrder(t, e, "59", 2)
	orderID := uuid.MustParse(order.ID)

	resp, err := e.payments.Pay(context.Background(), e.actor, orderID, dto.PayRequest{Method: "cash", Amount: amount("120")})
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, resp.OrderStatus)
	assert.True(t, resp.PaidAmount.Equal(decimal.NewFromInt(120)))
	assert.True(t, resp.Outstanding.IsZero())
	assert.True(t, resp.Change.Equal(decimal.NewFromInt(2)))

	assert.Equal(t, model.OrderCompleted, e.store.order(orderID).Status)
	assert.Equal(t, model.TableAvailable, e.store.table(table.ID).Status)
}

func TestPay_RepayRejected(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	_, order := seatAndOrder(t, e, "20", 1)
	orderID := uuid.MustParse(order.ID)

	_, err := e.payments.Pay(context.Background(), e.actor, orderID, dto.PayRequest{Method: "cash"})
	require.NoError(t, err)
	completedAt := e.store.order(orderID).CompletedAt

	_, err = e.payments.Pay(context.Background(), e.actor, orderID, dto.PayRequest{Method: "cash"})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindValidation))
	assert.ErrorContains(t, err, "order already closed")
	assert.Equal(t, completedAt, e.store.order(orderID).CompletedAt)

	payments, err := memPayments{e.store}.ListByOrder(context.Background(), e.tenantID, orderID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestPay_CancelledOrder(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	_, order := seatAndOrder(t, e, "20", 1)
	orderID := uuid.MustParse(order.ID)
	_, err := e.orders.UpdateStatus(context.Background(), e.actor, orderID, model.OrderCancelled)
	require.NoError(t, err)

	_, err = e.payments.Pay(context.Background(), e.actor, orderID, dto.PayRequest{Method: "cash"})
	assert.True(t, apierror.Is(err, apierror.KindValidation))
}

func TestPay_Validation(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	_, order := seatAndOrder(t, e, "20", 1)
	orderID := uuid.MustParse(order.ID)

	cases := map[string]dto.PayRequest{
		"unknown method":  {Method: "cheque"},
		"zero amount":     {Method: "cash", Amount: amount("0")},
		"negative amount": {Method: "cash", Amount: amount("-5")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.payments.Pay(context.Background(), e.actor, orderID, req)
			assert.True(t, apierror.Is(err, apierror.KindValidation), "got %v", err)
		})
	}
	assert.Equal(t, model.OrderOpen, e.store.order(orderID).Status)
}

func TestPay_OrderNotFound(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	_, err := e.payments.Pay(context.Background(), e.actor, uuid.New(), dto.PayRequest{Method: "cash"})
	assert.True(t, apierror.Is(err, apierror.KindNotFound))
}

func TestPay_OtherTenantOrderNotFound(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	_, order := seatAndOrder(t, e, "20", 1)

	intruder := e.actor
	intruder.TenantID = uuid.New()
	_, err := e.payments.Pay(context.Background(), intruder, uuid.MustParse(order.ID), dto.PayRequest{Method: "cash"})
	assert.True(t, apierror.Is(err, apierror.KindNotFound))
}

func TestPay_TriggersAccountingHook(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	queue := &stubQueue{}
	// Rebuild the payment service with the real accounting and receipt hooks.
	hooks := []service.Hook{
		service.NewAccountingHook(e.accounting, queue),
		service.NewReceiptHook(queue),
	}
	payments := service.NewPaymentService(e.store, memOrders{e.store}, memTables{e.store}, memPayments{e.store}, e.sessions, hooks)

	_, order := seatAndOrder(t, e, "118", 1)
	orderID := uuid.MustParse(order.ID)
	_, err := payments.Pay(context.Background(), e.actor, orderID, dto.PayRequest{Method: "cash"})
	require.NoError(t, err)

	assert.Equal(t, 1, e.store.entryCount())
	entry, err := e.accounting.FindByReference(context.Background(), e.tenantID, service.OrderReference(orderID))
	require.NoError(t, err)
	assert.True(t, entry.TotalDebit.Equal(decimal.NewFromInt(118)))
	assert.Empty(t, queue.accounting)
	assert.Equal(t, []uuid.UUID{orderID}, queue.receipts)
}

func TestPay_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	e := newEngine(service.OrderOptions{})
	_, order := seatAndOrder(t, e, "59", 2)
	_, err := e.payments.Pay(context.Background(), e.actor, uuid.MustParse(order.ID), dto.PayRequest{Method: "cash"})
	require.NoError(t, err)

	names := map[string]bool{}
	for _, s := range recorder.Ended() {
		names[s.Name()] = true
		if s.Name() == "order.pay" {
			assert.Contains(t, s.Attributes(), attribute.String("order_id", order.ID))
		}
	}
	assert.True(t, names["order.create"])
	assert.True(t, names["order.pay"])
}
