package investmentService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/ttwo_investment_bot/data/repository"
	"github.com/KotFed0t/ttwo_investment_bot/internal/model"
	"github.com/KotFed0t/ttwo_investment_bot/internal/service"
	"github.com/KotFed0t/ttwo_investment_bot/utils"
	"github.com/shopspring/decimal"
)

const Ticker = "TTWO"

type PriceApi interface {
	GetLastClose(ctx context.Context, ticker string) (decimal.Decimal, error)
}

type Ledger interface {
	EnsureInitialized(ctx context.Context) error
	Append(ctx context.Context, record model.InvestmentRecord) error
	LoadAll(ctx context.Context) ([]model.InvestmentRecord, error)
	Path() string
}

type Repository interface {
	RegUser(ctx context.Context, chatID int64) (userID int64, err error)
}

// Notifier is told about the ledger file after every successful write.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ledgerPath string) error
}

type Option func(s *InvestmentService)

func WithNotifiers(notifiers ...Notifier) Option {
	return func(s *InvestmentService) {
		s.notifiers = append(s.notifiers, notifiers...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *InvestmentService) {
		s.now = now
	}
}

type InvestmentService struct {
	repo      Repository
	ledger    Ledger
	priceApi  PriceApi
	notifiers []Notifier
	now       func() time.Time
}

func New(repo Repository, ledger Ledger, priceApi PriceApi, opts ...Option) *InvestmentService {
	s := &InvestmentService{
		repo:     repo,
		ledger:   ledger,
		priceApi: priceApi,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *InvestmentService) RegUser(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "InvestmentService.RegUser"

	slog.Debug("RegUser start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("RegUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	_, err := s.repo.RegUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil
		}
		slog.Error("got error from repo.RegUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// Validate checks the form without touching the price api or the ledger.
func (s *InvestmentService) Validate(form model.InvestmentForm) error {
	if strings.TrimSpace(form.Name) == "" {
		return fmt.Errorf("%w: investor name is empty", service.ErrValidation)
	}

	if !form.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", service.ErrValidation)
	}

	return nil
}

// Submit validates the form, prices it and appends it to the ledger.
// Nothing is written unless validation and the price lookup both succeed.
func (s *InvestmentService) Submit(ctx context.Context, form model.InvestmentForm) (model.SubmitResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "InvestmentService.Submit"

	slog.Debug("Submit start", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", form.Name), slog.String("amount", form.Amount.String()))
	defer func() {
		slog.Debug("Submit finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	if err := s.Validate(form); err != nil {
		slog.Warn("invalid investment form", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.SubmitResult{}, err
	}

	price, err := s.priceApi.GetLastClose(ctx, Ticker)
	if err != nil {
		slog.Error("can't get price from priceApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.SubmitResult{}, fmt.Errorf("%w: %w", service.ErrPriceUnavailable, err)
	}

	if !price.IsPositive() {
		slog.Error("got non-positive price", slog.String("rqID", rqID), slog.String("op", op), slog.String("price", price.String()))
		return model.SubmitResult{}, fmt.Errorf("%w: non-positive price %s", service.ErrPriceUnavailable, price)
	}

	shares := form.Amount.Div(price)
	record := model.InvestmentRecord{
		Timestamp: s.now().Format(model.TimestampLayout),
		Name:      strings.TrimSpace(form.Name),
		Amount:    form.Amount.Round(2),
		Price:     price.Round(4),
		Shares:    shares.Round(6),
	}

	err = s.ledger.Append(ctx, record)
	if err != nil {
		slog.Error("got error from ledger.Append", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.SubmitResult{}, fmt.Errorf("%w: %w", service.ErrStorage, err)
	}

	slog.Info("investment recorded", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", record.Name), slog.String("shares", record.Shares.String()))

	result := model.SubmitResult{Record: record, FetchedPrice: price, ExactShares: shares}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, s.ledger.Path()); err != nil {
			slog.Warn("post-write notification failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("notifier", n.Name()), slog.String("err", err.Error()))
			result.Warnings = append(result.Warnings, fmt.Errorf("%w: %s: %w", service.ErrNotification, n.Name(), err))
		}
	}

	return result, nil
}

// Investments reloads the whole ledger and recomputes the totals.
func (s *InvestmentService) Investments(ctx context.Context) (model.InvestmentsPage, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "InvestmentService.Investments"

	slog.Debug("Investments start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("Investments finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	records, err := s.ledger.LoadAll(ctx)
	if err != nil {
		slog.Error("got error from ledger.LoadAll", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.InvestmentsPage{}, fmt.Errorf("%w: %w", service.ErrStorage, err)
	}

	page := model.InvestmentsPage{
		Ticker: Ticker,
		Rows:   make([]model.InvestmentRow, 0, len(records)),
	}

	for i, record := range records {
		page.Rows = append(page.Rows, model.InvestmentRow{Ordinal: i + 1, InvestmentRecord: record})
		page.TotalInvested = page.TotalInvested.Add(record.Amount)
		page.TotalShares = page.TotalShares.Add(record.Shares)
	}

	return page, nil
}

// LedgerPath returns the ledger location, or ok=false when nothing has been recorded yet.
func (s *InvestmentService) LedgerPath(ctx context.Context) (path string, ok bool, err error) {
	records, err := s.ledger.LoadAll(ctx)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", service.ErrStorage, err)
	}

	return s.ledger.Path(), len(records) > 0, nil
}

// Init prepares the ledger on startup.
func (s *InvestmentService) Init(ctx context.Context) error {
	if err := s.ledger.EnsureInitialized(ctx); err != nil {
		return fmt.Errorf("%w: %w", service.ErrStorage, err)
	}
	return nil
}
