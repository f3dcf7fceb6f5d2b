package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KotFed0t/ttwo_investment_bot/data/session"
	"github.com/KotFed0t/ttwo_investment_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/ttwo_investment_bot/internal/model"
	"github.com/KotFed0t/ttwo_investment_bot/internal/service"
	"github.com/KotFed0t/ttwo_investment_bot/internal/service/investmentService"
	"github.com/KotFed0t/ttwo_investment_bot/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg   = "Something went wrong, please try again."
	invalidInputMsg  = "Please enter a valid name and investment amount."
	helpMsg          = "TTWO Investment Tracker (USD Only)\n\n/invest - record a new investment\n/investments - show all investments\n/ledger - download the ledger"
	askNameMsg       = "Enter investor name:"
	askAmountMsg     = "Amount invested (USD):"
	invalidAmountMsg = "Amount must be a non-negative number, e.g. 1000 or 250.50"
	cancelledMsg     = "Investment cancelled."
	noFormMsg        = "Start with /invest first."
)

type InvestmentService interface {
	RegUser(ctx context.Context, chatID int64) error
	Submit(ctx context.Context, form model.InvestmentForm) (model.SubmitResult, error)
	Investments(ctx context.Context) (model.InvestmentsPage, error)
	LedgerPath(ctx context.Context) (path string, ok bool, err error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
	TakeSession(ctx context.Context, key string) (model.Session, error)
	DeleteSession(ctx context.Context, key string) error
}

type Controller struct {
	investmentService InvestmentService
	session           Session
}

func NewController(investmentService InvestmentService, session Session) *Controller {
	return &Controller{
		investmentService: investmentService,
		session:           session,
	}
}

func chatKey(c tele.Context) string {
	return strconv.FormatInt(c.Chat().ID, 10)
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	_ = ctrl.investmentService.RegUser(ctx, c.Chat().ID)
	return c.Reply(helpMsg)
}

func (ctrl *Controller) InitInvestment(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	// every /invest starts a fresh form
	chatSession := model.Session{Action: model.ExpectingInvestorName}
	if err := ctrl.session.SetSession(ctx, chatKey(c), chatSession); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(askNameMsg)
}

func (ctrl *Controller) ProcessInvestorName(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	name := strings.TrimSpace(c.Message().Text)
	if name == "" {
		return c.Send(askNameMsg)
	}

	chatSession.Name = name
	chatSession.Action = model.ExpectingAmount
	if err = ctrl.session.SetSession(ctx, chatKey(c), chatSession); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(askAmountMsg)
}

func (ctrl *Controller) ProcessAmount(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	amount, err := parseAmount(c.Message().Text)
	if err != nil {
		slog.Debug("can't parse amount", slog.String("rqID", rqID), slog.String("text", c.Message().Text), slog.String("err", err.Error()))
		return c.Send(invalidAmountMsg)
	}

	chatSession.Amount = amount
	chatSession.Action = model.ExpectingSubmit
	if err = ctrl.session.SetSession(ctx, chatKey(c), chatSession); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.ConfirmationResponse(chatSession.Form(), investmentService.Ticker)
	return c.Send(text, markup, tele.ModeHTML)
}

func (ctrl *Controller) SubmitInvestment(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	_ = c.Respond()

	// taking the draft makes a repeated tap see no form
	chatSession, err := ctrl.session.TakeSession(ctx, chatKey(c))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.Send(noFormMsg)
		}
		slog.Error("got error from session.TakeSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if chatSession.Action != model.ExpectingSubmit {
		ctrl.restoreSession(ctx, c, chatSession)
		return c.Send(noFormMsg)
	}

	result, err := ctrl.investmentService.Submit(ctx, chatSession.Form())
	if err != nil {
		ctrl.restoreSession(ctx, c, chatSession)
		switch {
		case errors.Is(err, service.ErrValidation):
			return c.Send("⚠️ " + invalidInputMsg)
		case errors.Is(err, service.ErrPriceUnavailable):
			return c.Send(fmt.Sprintf("❌ Error fetching %s stock price, please try again later.", investmentService.Ticker))
		default:
			slog.Error("got error from investmentService.Submit", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send(internalErrMsg)
		}
	}

	text, markup := telebotConverter.SubmitResponse(result, investmentService.Ticker)
	if err = c.Edit(text, markup, tele.ModeHTML); err != nil {
		slog.Warn("can't edit confirmation message", slog.String("rqID", rqID), slog.String("err", err.Error()))
		if err = c.Send(text, markup, tele.ModeHTML); err != nil {
			return err
		}
	}

	return ctrl.sendInvestments(ctx, c)
}

func (ctrl *Controller) CancelInvestment(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	_ = c.Respond()

	if err := ctrl.session.DeleteSession(ctx, chatKey(c)); err != nil {
		slog.Error("got error from session.DeleteSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Edit(cancelledMsg)
}

func (ctrl *Controller) ShowInvestments(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	if c.Callback() != nil {
		_ = c.Respond()
	}
	return ctrl.sendInvestments(ctx, c)
}

func (ctrl *Controller) sendInvestments(ctx context.Context, c tele.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	page, err := ctrl.investmentService.Investments(ctx)
	if err != nil {
		slog.Error("got error from investmentService.Investments", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.InvestmentsResponse(page), tele.ModeHTML)
}

func (ctrl *Controller) SendLedger(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	path, ok, err := ctrl.investmentService.LedgerPath(ctx)
	if err != nil {
		slog.Error("got error from investmentService.LedgerPath", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if !ok {
		return c.Send(telebotConverter.NoInvestmentsMsg)
	}

	doc := &tele.Document{File: tele.FromDisk(path), FileName: filepath.Base(path)}
	return c.Send(doc)
}

func (ctrl *Controller) restoreSession(ctx context.Context, c tele.Context, chatSession model.Session) {
	if err := ctrl.session.SetSession(ctx, chatKey(c), chatSession); err != nil {
		slog.Error("can't restore session", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, chatKey(c))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return model.Session{}, err
	}
	return chatSession, nil
}

// parseAmount accepts "1000", "1,000.50" and "$250".
func parseAmount(text string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(strings.TrimSpace(text))

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}

	if amount.IsNegative() {
		return decimal.Zero, errors.New("negative amount")
	}

	return amount, nil
}
