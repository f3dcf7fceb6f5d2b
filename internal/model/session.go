package model

import "github.com/shopspring/decimal"

type action int

const (
	DefaultAction action = iota
	ExpectingInvestorName
	ExpectingAmount
	ExpectingSubmit
)

// Session is the per-chat form draft.
type Session struct {
	Action action
	Name   string
	Amount decimal.Decimal
}

func (s Session) Form() InvestmentForm {
	return InvestmentForm{Name: s.Name, Amount: s.Amount}
}
