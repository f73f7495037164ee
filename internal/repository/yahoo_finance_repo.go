package repository

import (
	"context"
	"fmt"
	"golang-backtest/config"
	"golang-backtest/internal/dto"
	"golang-backtest/pkg/common"
	"golang-backtest/pkg/httpclient"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type YahooFinanceRepository interface {
	PriceProvider
}

type yahooFinanceRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            config.Provider
	logger         *logger.Logger
	requestLimiter *rate.Limiter
	now            func() time.Time
}

func NewYahooFinanceRepository(cfg config.Provider, log *logger.Logger) YahooFinanceRepository {
	return newYahooFinanceRepository(httpclient.New(cfg.BaseURL, cfg.Timeout), cfg, log)
}

func newYahooFinanceRepository(client httpclient.HTTPClient, cfg config.Provider, log *logger.Logger) *yahooFinanceRepository {
	return &yahooFinanceRepository{
		httpClient:     client,
		cfg:            cfg,
		logger:         log,
		requestLimiter: newRequestLimiter(cfg.MaxRequestPerMinute),
		now:            time.Now,
	}
}

func (r *yahooFinanceRepository) Name() string {
	return common.PROVIDER_YAHOO_FINANCE
}

func (r *yahooFinanceRepository) Get(ctx context.Context, param dto.GetStockDataParam) (*dto.StockData, error) {
	if !r.requestLimiter.Allow() {
		r.logger.WarnContext(ctx, "Yahoo Finance API request limit exceeded, waiting",
			logger.IntField("max_request_per_minute", r.cfg.MaxRequestPerMinute))
		if err := r.requestLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	from, to, err := utils.PeriodRange(param.Range, r.now())
	if err != nil {
		return nil, err
	}

	symbol := yahooSymbol(param.Symbol)
	queryParams := map[string]string{
		"period1":        strconv.FormatInt(from.Unix(), 10),
		"period2":        strconv.FormatInt(to.Unix(), 10),
		"interval":       param.Interval,
		"includePrePost": "false",
		"events":         "div,split",
	}

	headers := map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://finance.yahoo.com/",
	}

	var yahooResp dto.YahooFinanceResponse
	resp, err := r.httpClient.Get(ctx, "/"+symbol, queryParams, headers, &yahooResp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from yahoo finance: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.ErrorContext(ctx, "Yahoo Finance API returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("yahoo finance api returned status: %d", resp.StatusCode)
	}

	if yahooResp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo finance api error: %v", yahooResp.Chart.Error)
	}

	if len(yahooResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data returned for symbol: %s", symbol)
	}

	result := yahooResp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data available for symbol: %s", symbol)
	}

	quote := result.Indicators.Quote[0]

	bars := make([]dto.PriceBar, 0, len(result.Timestamp))
	for i, timestamp := range result.Timestamp {
		open, ok1 := quoteAt(quote.Open, i)
		high, ok2 := quoteAt(quote.High, i)
		low, ok3 := quoteAt(quote.Low, i)
		closePrice, ok4 := quoteAt(quote.Close, i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		// volume is often null for indexes and some crypto pairs
		volume, _ := quoteAt(quote.Volume, i)

		bars = append(bars, dto.PriceBar{
			Timestamp: timestamp * 1000,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no valid OHLCV data found for symbol: %s", symbol)
	}

	return &dto.StockData{
		Symbol:   param.Symbol,
		Range:    param.Range,
		Interval: param.Interval,
		Source:   r.Name(),
		Bars:     bars,
	}, nil
}

func quoteAt(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

// yahooSymbol maps exchange pair symbols to Yahoo's quote currency form, BTCUSDT -> BTC-USD.
func yahooSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, quote := range []string{"USDT", "BUSD", "USDC"} {
		if base, ok := strings.CutSuffix(s, quote); ok && base != "" {
			return base + "-USD"
		}
	}
	return s
}
