package model

import "github.com/shopspring/decimal"

const TimestampLayout = "2006-01-02 15:04:05"

// InvestmentRecord is one row of the ledger. Shares is always derived from Amount and Price.
type InvestmentRecord struct {
	Timestamp string
	Name      string
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Shares    decimal.Decimal
}

// InvestmentForm holds the raw form inputs of a single submission.
type InvestmentForm struct {
	Name   string
	Amount decimal.Decimal
}

// SubmitResult carries the stored record plus the unrounded price and shares for display.
type SubmitResult struct {
	Record       InvestmentRecord
	FetchedPrice decimal.Decimal
	ExactShares  decimal.Decimal
	Warnings     []error
}

type InvestmentRow struct {
	Ordinal int
	InvestmentRecord
}

type InvestmentsSummary struct {
	TotalInvested decimal.Decimal
	TotalShares   decimal.Decimal
}

type InvestmentsPage struct {
	Ticker string
	Rows   []InvestmentRow
	InvestmentsSummary
}
