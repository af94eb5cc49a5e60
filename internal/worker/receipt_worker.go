package worker

// receipt_worker.go
// Renders the PDF receipt of a completed order and sends a job to the
// tenant's front printer pointing at the file.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"restopos/internal/apierror"
	"restopos/internal/events"
	"restopos/internal/infra"
	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PrintPublisher is implemented by events.Notifier.
type PrintPublisher interface {
	PublishPrintJob(ctx context.Context, tenantID uuid.UUID, job events.PrintJob)
}

type ReceiptWorker struct {
	orders      repository.OrderRepository
	payments    repository.PaymentRepository
	printer     PrintPublisher
	storagePath string
}

func NewReceiptWorker(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	printer PrintPublisher,
	storagePath string,
) *ReceiptWorker {
	return &ReceiptWorker{
		orders:      orders,
		payments:    payments,
		printer:     printer,
		storagePath: storagePath,
	}
}

func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload OrderJob
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(err)
	}
	tenantID, orderID, err := payload.ids()
	if err != nil {
		return Permanent(err)
	}

	order, err := w.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		err = apierror.FromDB(err, "order not found")
		if apierror.Is(err, apierror.KindNotFound) {
			return Permanent(err)
		}
		return err
	}
	if order.Status != model.OrderCompleted {
		return Permanent(fmt.Errorf("order %s is %s", orderID, order.Status))
	}

	payments, err := w.payments.ListByOrder(ctx, tenantID, orderID)
	if err != nil {
		return err
	}

	path, err := infra.GenerateReceiptPDF(order, payments, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Str("pdf", path).Str("order_id", payload.OrderID).Msg("receipt_worker: receipt generated")

	job := events.PrintJob{
		OrderID:     order.ID.String(),
		Printer:     events.PrinterFront,
		ReceiptPath: path,
		IssuedAt:    time.Now().UTC(),
		Items:       make([]events.Line, 0, len(order.Items)),
	}
	if order.Table != nil {
		job.Table = order.Table.Number
	}
	for _, it := range order.Items {
		if it.Status == model.ItemCancelled {
			continue
		}
		l := events.Line{ItemID: it.ItemID.String(), Qty: it.Quantity, Status: it.Status}
		if it.Item != nil {
			l.Item = it.Item.Name
		}
		job.Items = append(job.Items, l)
	}
	w.printer.PublishPrintJob(ctx, tenantID, job)
	return nil
}
