package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/KotFed0t/ttwo_investment_bot/config"
	"github.com/KotFed0t/ttwo_investment_bot/data/session"
	"github.com/KotFed0t/ttwo_investment_bot/internal/model"
	"github.com/KotFed0t/ttwo_investment_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/ttwo_investment_bot/internal/transport/telegram"
	customMW "github.com/KotFed0t/ttwo_investment_bot/internal/transport/telegram/middleware"
	"github.com/KotFed0t/ttwo_investment_bot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) (*TGBot, error) {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
		OnError: func(err error, c tele.Context) {
			slog.Error("tgbot handler error", slog.String("err", err.Error()))
		},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("tele.NewBot: %w", err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}, nil
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		// the form step is kept in the chat session
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)
		chatSession, err := b.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return c.Send("Use /invest to record a new investment.")
			}
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("Something went wrong, please try again.")
		}

		c.Set("session", chatSession)

		switch chatSession.Action {
		case model.ExpectingInvestorName:
			return b.ctrl.ProcessInvestorName(c)
		case model.ExpectingAmount:
			return b.ctrl.ProcessAmount(c)
		case model.ExpectingSubmit:
			return c.Send("Press \"Submit Investment\" to save it, or /invest to start over.")
		default:
			slog.Debug("unexpected chatSession action", slog.String("rqID", rqID), slog.Any("action", chatSession.Action))
			return c.Send("Use /invest to record a new investment.")
		}
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/help", b.ctrl.Start)
	b.bot.Handle("/invest", b.ctrl.InitInvestment)
	b.bot.Handle("/investments", b.ctrl.ShowInvestments)
	b.bot.Handle("/ledger", b.ctrl.SendLedger)

	b.bot.Handle(&tele.Btn{Unique: tgCallback.SubmitInvestment}, b.ctrl.SubmitInvestment)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.CancelInvestment}, b.ctrl.CancelInvestment)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.ShowInvestments}, b.ctrl.ShowInvestments)
}
