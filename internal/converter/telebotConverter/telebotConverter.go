package telebotConverter

import (
	"fmt"
	"html"
	"strings"

	"github.com/KotFed0t/ttwo_investment_bot/internal/model"
	"github.com/KotFed0t/ttwo_investment_bot/internal/model/tg/tgCallback"
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	tele "gopkg.in/telebot.v4"
)

const NoInvestmentsMsg = "No investments yet."

var printer = message.NewPrinter(language.English)

// FormatUSD renders an amount as "$1,500.00".
func FormatUSD(amount decimal.Decimal) string {
	cents := amount.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// FormatShares renders shares with 6 decimals and thousands separators.
func FormatShares(shares decimal.Decimal) string {
	return printer.Sprintf("%.6f", shares.Round(6).InexactFloat64())
}

func InvestmentsResponse(page model.InvestmentsPage) string {
	if len(page.Rows) == 0 {
		return NoInvestmentsMsg
	}

	var sb strings.Builder

	sb.WriteString("📊 <b>All Investments</b>\n\n")
	for _, row := range page.Rows {
		sb.WriteString(fmt.Sprintf("%d. <b>%s</b> · %s\n", row.Ordinal, html.EscapeString(row.Name), html.EscapeString(row.Timestamp)))
		sb.WriteString(fmt.Sprintf("   ▸ Invested: %s\n", FormatUSD(row.Amount)))
		sb.WriteString(fmt.Sprintf("   ▸ %s price: $%s\n", page.Ticker, row.Price.String()))
		sb.WriteString(fmt.Sprintf("   ▸ Shares: %s\n\n", row.Shares.String()))
	}

	sb.WriteString("📋 <b>Summary</b>\n")
	sb.WriteString(fmt.Sprintf(" • <b>Total Invested:</b> %s\n", FormatUSD(page.TotalInvested)))
	sb.WriteString(fmt.Sprintf(" • <b>Total %s Shares:</b> %s", page.Ticker, FormatShares(page.TotalShares)))

	return sb.String()
}

func ConfirmationResponse(form model.InvestmentForm, ticker string) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}

	text = fmt.Sprintf(
		"💼 <b>New %s investment</b>\n ▸ Investor: %s\n ▸ Amount: %s",
		ticker,
		html.EscapeString(form.Name),
		FormatUSD(form.Amount),
	)

	submitBtn := markup.Data("✅ Submit Investment", tgCallback.SubmitInvestment)
	cancelBtn := markup.Data("✖️ Cancel", tgCallback.CancelInvestment)
	markup.Inline(markup.Row(submitBtn, cancelBtn))

	return text, markup
}

func SubmitResponse(result model.SubmitResult, ticker string) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"✅ Saved! %s %s shares can be purchased at $%s",
		result.ExactShares.StringFixed(4),
		ticker,
		result.FetchedPrice.StringFixed(2),
	))

	for _, w := range result.Warnings {
		sb.WriteString(fmt.Sprintf("\n⚠️ %s", html.EscapeString(w.Error())))
	}

	markup.Inline(markup.Row(markup.Data("📊 All Investments", tgCallback.ShowInvestments)))

	return sb.String(), markup
}
