package yahooApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/ttwo_investment_bot/config"
	"github.com/KotFed0t/ttwo_investment_bot/internal/externalApi"
	"github.com/KotFed0t/ttwo_investment_bot/internal/model/yahooModel"
	"github.com/KotFed0t/ttwo_investment_bot/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type YahooApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *YahooApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.YahooApi.Url).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; ttwo-investment-bot/1.0)")
	return &YahooApi{client: client}
}

// GetLastClose returns the most recent daily close of ticker.
// Every failure is reported as externalApi.ErrNoPrice.
func (a *YahooApi) GetLastClose(ctx context.Context, ticker string) (decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "YahooApi.GetLastClose"
	url := "/v8/finance/chart/{symbol}"
	params := map[string]string{
		"range":    "1d",
		"interval": "1d",
	}

	slog.Debug("start YahooApi.GetLastClose request", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetPathParam("symbol", ticker).
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Zero, fmt.Errorf("%w: %w", externalApi.ErrNoPrice, err)
	}

	rawChart := yahooModel.RawChart{}
	err = json.Unmarshal(resp.Body(), &rawChart)
	if err != nil {
		slog.Error("can't unmarshall response into yahooModel.RawChart", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()), slog.Int("status", resp.StatusCode()))
		return decimal.Zero, fmt.Errorf("%w: status %d: %w", externalApi.ErrNoPrice, resp.StatusCode(), err)
	}

	if resp.IsError() {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode())
		if rawChart.Chart.Error != nil {
			err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), rawChart.Chart.Error.Description)
		}
		slog.Error("YahooApi returned error status", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Zero, fmt.Errorf("%w: %w", externalApi.ErrNoPrice, err)
	}

	price, err := a.parseLastClose(rawChart)
	if err != nil {
		slog.Error("can't parse raw chart", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Zero, fmt.Errorf("%w: %w", externalApi.ErrNoPrice, err)
	}

	slog.Debug("YahooApi.GetLastClose request complete", slog.String("rqID", rqID), slog.String("op", op), slog.String("price", price.String()))

	return price, nil
}

func (a *YahooApi) parseLastClose(rawChart yahooModel.RawChart) (decimal.Decimal, error) {
	if rawChart.Chart.Error != nil {
		return decimal.Zero, fmt.Errorf("chart error %s: %s", rawChart.Chart.Error.Code, rawChart.Chart.Error.Description)
	}

	if len(rawChart.Chart.Result) == 0 {
		return decimal.Zero, externalApi.ErrNotFound
	}

	quotes := rawChart.Chart.Result[0].Indicators.Quote
	if len(quotes) == 0 {
		return decimal.Zero, errors.New("empty quote series")
	}

	closes := quotes[0].Close
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] == nil {
			continue
		}

		price := decimal.NewFromFloat(*closes[i])
		if !price.IsPositive() {
			return decimal.Zero, fmt.Errorf("invalid close value = %s", price)
		}
		return price, nil
	}

	return decimal.Zero, errors.New("empty close series")
}
