package dto

import "github.com/shopspring/decimal"

type JournalLineResponse struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

type JournalEntryResponse struct {
	ID          string                `json:"id"`
	Date        string                `json:"date"`
	Description string                `json:"description"`
	Reference   string                `json:"reference"`
	Posted      bool                  `json:"posted"`
	TotalDebit  decimal.Decimal       `json:"total_debit"`
	TotalCredit decimal.Decimal       `json:"total_credit"`
	Lines       []JournalLineResponse `json:"lines"`
}
