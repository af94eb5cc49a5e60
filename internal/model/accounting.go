package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account types.
const (
	AccountAsset     = "ASSET"
	AccountLiability = "LIABILITY"
	AccountEquity    = "EQUITY"
	AccountIncome    = "INCOME"
	AccountExpense   = "EXPENSE"
)

// Account is a ledger account, unique by (tenant, code).
type Account struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_accounts_tenant_code"`
	Code        string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_accounts_tenant_code"`
	Name        string    `gorm:"not null"`
	AccountType string    `gorm:"type:varchar(20);not null"`
	IsActive    bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time
}

// JournalEntry is a double-entry record. A posted entry is final and balanced.
// Reference is unique per tenant (idx_journal_entries_tenant_reference).
type JournalEntry struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Date        time.Time `gorm:"type:date;not null"`
	Description string    `gorm:"not null"`
	Reference   string    `gorm:"type:varchar(100);not null;default:''"`
	Posted      bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time

	Items []JournalItem `gorm:"foreignKey:EntryID"`
}

// JournalItem carries either a debit or a credit, never both.
type JournalItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EntryID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID uuid.UUID       `gorm:"type:uuid;not null"`
	Debit     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Credit    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`

	Account *Account `gorm:"foreignKey:AccountID"`
}

// Totals returns the debit and credit sums of the entry's items.
func (e *JournalEntry) Totals() (debit, credit decimal.Decimal) {
	for _, it := range e.Items {
		debit = debit.Add(it.Debit)
		credit = credit.Add(it.Credit)
	}
	return debit, credit
}
