package tgCallback

// Callbacks buttons prefixes
const (
	SubmitInvestment string = "submit_investment"
	CancelInvestment string = "cancel_investment"
	ShowInvestments  string = "show_investments"
)
