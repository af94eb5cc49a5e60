package service

import (
	"context"
	"errors"
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

// Control accounts, created per tenant on first use.
var (
	AccountCash          = model.Account{Code: "1001", Name: "Cash on Hand", AccountType: model.AccountAsset}
	AccountSales         = model.Account{Code: "4001", Name: "Sales Revenue", AccountType: model.AccountIncome}
	AccountTaxPayable    = model.Account{Code: "2001", Name: "Tax Payable", AccountType: model.AccountLiability}
	AccountServiceCharge = model.Account{Code: "4002", Name: "Service Charge Revenue", AccountType: model.AccountIncome}
)

// AccountingService posts completed orders to the general ledger.
type AccountingService interface {
	// PostOrder is idempotent: posted is false when the order is not completed
	// or already has its entry (returned as entry).
	PostOrder(ctx context.Context, tenantID, orderID uuid.UUID) (entry *model.JournalEntry, posted bool, err error)
	FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*dto.JournalEntryResponse, error)
}

type accountingService struct {
	tx         repository.Transactor
	orders     repository.OrderRepository
	accounting repository.AccountingRepository
}

func NewAccountingService(tx repository.Transactor, orders repository.OrderRepository, accounting repository.AccountingRepository) AccountingService {
	return &accountingService{tx: tx, orders: orders, accounting: accounting}
}

var errAlreadyPosted = errors.New("journal entry already posted")

func (s *accountingService) PostOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*model.JournalEntry, bool, error) {
	ctx, span := tracer.Start(ctx, "accounting.post", trace.WithAttributes(
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("order_id", orderID.String()),
	))
	defer span.End()

	reference := OrderReference(orderID)
	var (
		entry  *model.JournalEntry
		posted bool
	)
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		o, err := s.orders.FindByIDTx(tx, tenantID, orderID)
		if err != nil {
			return apierror.FromDB(err, "order not found")
		}
		if o.Status != model.OrderCompleted {
			return nil
		}

		existing, err := s.accounting.FindEntryByReferenceTx(tx, tenantID, reference)
		if err != nil {
			return err
		}
		if existing != nil {
			entry = existing
			return nil
		}

		accounts := make(map[string]*model.Account, 4)
		for _, tmpl := range []model.Account{AccountCash, AccountSales, AccountTaxPayable, AccountServiceCharge} {
			a := tmpl
			a.TenantID = tenantID
			a.IsActive = true
			acc, err := s.accounting.EnsureAccountTx(tx, &a)
			if err != nil {
				return err
			}
			accounts[tmpl.Code] = acc
		}

		e := buildOrderEntry(o, reference, accounts)
		debit, credit := e.Totals()
		if !debit.Equal(credit) {
			log.Error().
				Str("tenant_id", tenantID.String()).
				Str("order_id", orderID.String()).
				Str("debit", debit.String()).
				Str("credit", credit.String()).
				Msg("accounting: unbalanced journal entry rejected")
			return apierror.Consistency("journal entry for %s does not balance (debit %s, credit %s)",
				reference, debit.StringFixed(2), credit.StringFixed(2))
		}

		if err := s.accounting.CreateEntryTx(tx, e); err != nil {
			if apierror.IsUniqueViolation(err) {
				return errAlreadyPosted
			}
			return err
		}
		entry = e
		posted = true
		return nil
	})

	if errors.Is(err, errAlreadyPosted) {
		existing, ferr := s.accounting.FindEntryByReference(ctx, tenantID, reference)
		return existing, false, ferr
	}
	if err != nil {
		err = apierror.FromDB(err, "order not found")
		span.RecordError(err)
		span.SetStatus(codes.Error, apierror.KindOf(err).String())
		return nil, false, err
	}
	if posted {
		log.Info().
			Str("tenant_id", tenantID.String()).
			Str("reference", reference).
			Msg("accounting: journal entry posted")
	}
	span.SetAttributes(attribute.Bool("posted", posted))
	return entry, posted, nil
}

// buildOrderEntry: Dr Cash total; Cr Sales net; Cr Tax; Cr Service charge.
// Zero credit lines are left out.
func buildOrderEntry(o *model.Order, reference string, accounts map[string]*model.Account) *model.JournalEntry {
	total := o.TotalAmount
	tax := o.TaxAmount
	service := o.ServiceChargeAmount
	net := decimal.Max(total.Sub(tax).Sub(service), decimal.Zero)

	date := time.Now().UTC()
	if o.CompletedAt != nil {
		date = *o.CompletedAt
	}
	e := &model.JournalEntry{
		ID:          uuid.New(),
		TenantID:    o.TenantID,
		Date:        date,
		Description: "Sales revenue for order " + o.ID.String(),
		Reference:   reference,
		Posted:      true,
	}
	add := func(code string, debit, credit decimal.Decimal) {
		e.Items = append(e.Items, model.JournalItem{
			EntryID:   e.ID,
			AccountID: accounts[code].ID,
			Debit:     debit,
			Credit:    credit,
		})
	}
	add(AccountCash.Code, total, decimal.Zero)
	if net.IsPositive() {
		add(AccountSales.Code, decimal.Zero, net)
	}
	if tax.IsPositive() {
		add(AccountTaxPayable.Code, decimal.Zero, tax)
	}
	if service.IsPositive() {
		add(AccountServiceCharge.Code, decimal.Zero, service)
	}
	return e
}

func (s *accountingService) FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*dto.JournalEntryResponse, error) {
	if reference == "" {
		return nil, apierror.Invalid("reference is required")
	}
	e, err := s.accounting.FindEntryByReference(ctx, tenantID, reference)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apierror.NotFound("journal entry %q not found", reference)
	}
	return entryToResponse(e), nil
}

func entryToResponse(e *model.JournalEntry) *dto.JournalEntryResponse {
	debit, credit := e.Totals()
	resp := &dto.JournalEntryResponse{
		ID:          e.ID.String(),
		Date:        e.Date.Format("2006-01-02"),
		Description: e.Description,
		Reference:   e.Reference,
		Posted:      e.Posted,
		TotalDebit:  debit,
		TotalCredit: credit,
		Lines:       make([]dto.JournalLineResponse, 0, len(e.Items)),
	}
	for _, it := range e.Items {
		l := dto.JournalLineResponse{Debit: it.Debit, Credit: it.Credit}
		if it.Account != nil {
			l.AccountCode = it.Account.Code
			l.AccountName = it.Account.Name
		}
		resp.Lines = append(resp.Lines, l)
	}
	return resp
}
