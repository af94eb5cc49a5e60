package worker

// accounting_worker.go
// Posts the journal entry of a completed order when the synchronous post in
// the payment request failed. Posting is idempotent, so a job that races the
// reconcile cron is harmless.

import (
	"context"
	"encoding/json"

	"restopos/internal/apierror"
	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OrderPoster is implemented by service.AccountingService.
type OrderPoster interface {
	PostOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*model.JournalEntry, bool, error)
}

type AccountingWorker struct {
	poster OrderPoster
}

func NewAccountingWorker(poster OrderPoster) *AccountingWorker {
	return &AccountingWorker{poster: poster}
}

func (w *AccountingWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload OrderJob
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(err)
	}
	tenantID, orderID, err := payload.ids()
	if err != nil {
		return Permanent(err)
	}

	_, posted, err := w.poster.PostOrder(ctx, tenantID, orderID)
	if err != nil {
		switch apierror.KindOf(err) {
		case apierror.KindInternalConsistency, apierror.KindNotFound:
			return Permanent(err)
		}
		return err
	}
	if posted {
		log.Info().
			Str("tenant_id", payload.TenantID).
			Str("order_id", payload.OrderID).
			Msg("accounting_worker: journal entry posted")
	}
	return nil
}
