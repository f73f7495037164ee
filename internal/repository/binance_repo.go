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

const binanceKlinesLimit = 1000

type BinanceRepository interface {
	PriceProvider
	GetKlines(ctx context.Context, symbol string, interval string, limit int, startTime, endTime int64) ([]dto.BinanceKlines, error)
}

type binanceRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            config.Provider
	logger         *logger.Logger
	requestLimiter *rate.Limiter
	now            func() time.Time
}

func NewBinanceRepository(cfg config.Provider, log *logger.Logger) BinanceRepository {
	return newBinanceRepository(httpclient.New(cfg.BaseURL, cfg.Timeout), cfg, log)
}

func newBinanceRepository(client httpclient.HTTPClient, cfg config.Provider, log *logger.Logger) *binanceRepository {
	return &binanceRepository{
		httpClient:     client,
		cfg:            cfg,
		logger:         log,
		requestLimiter: newRequestLimiter(cfg.MaxRequestPerMinute),
		now:            time.Now,
	}
}

func (r *binanceRepository) Name() string {
	return common.PROVIDER_BINANCE
}

func (r *binanceRepository) GetKlines(ctx context.Context, symbol string, interval string, limit int, startTime, endTime int64) ([]dto.BinanceKlines, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := "/api/v3/klines"
	queryParams := map[string]string{
		"symbol":    symbol,
		"interval":  interval,
		"limit":     strconv.Itoa(limit),
		"startTime": strconv.FormatInt(startTime, 10),
		"endTime":   strconv.FormatInt(endTime, 10),
	}

	var klines [][]interface{}
	resp, err := r.httpClient.Get(ctx, endpoint, queryParams, nil, &klines)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines from binance: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.ErrorContext(ctx, "Binance API returned Non-OK status for klines",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("binance api returned status: %d", resp.StatusCode)
	}

	result := make([]dto.BinanceKlines, 0, len(klines))
	for _, k := range klines {
		kline, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("failed to parse binance kline: %w", err)
		}
		result = append(result, kline)
	}

	return result, nil
}

// Get pages through klines until the period is covered.
func (r *binanceRepository) Get(ctx context.Context, param dto.GetStockDataParam) (*dto.StockData, error) {
	from, to, err := utils.PeriodRange(param.Range, r.now())
	if err != nil {
		return nil, err
	}
	interval := binanceInterval(param.Interval)
	symbol := binanceSymbol(param.Symbol)

	var bars []dto.PriceBar
	start, end := from.UnixMilli(), to.UnixMilli()
	for start < end {
		klines, err := r.GetKlines(ctx, symbol, interval, binanceKlinesLimit, start, end)
		if err != nil {
			return nil, err
		}
		for _, k := range klines {
			bars = append(bars, dto.PriceBar{
				Timestamp: k.OpenTime,
				Open:      k.Open,
				High:      k.High,
				Low:       k.Low,
				Close:     k.Close,
				Volume:    k.Volume,
			})
		}
		if len(klines) < binanceKlinesLimit {
			break
		}
		next := klines[len(klines)-1].OpenTime + 1
		if next <= start {
			break
		}
		start = next
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no klines returned for symbol: %s", symbol)
	}

	return &dto.StockData{
		Symbol:   param.Symbol,
		Range:    param.Range,
		Interval: param.Interval,
		Source:   r.Name(),
		Bars:     bars,
	}, nil
}

func parseKline(k []interface{}) (dto.BinanceKlines, error) {
	if len(k) < 11 {
		return dto.BinanceKlines{}, fmt.Errorf("expected 11 fields, got %d", len(k))
	}
	openTime, _ := k[0].(float64)
	closeTime, _ := k[6].(float64)
	trades, _ := k[8].(float64)

	var prices [8]float64
	for j, idx := range []int{1, 2, 3, 4, 5, 7, 9, 10} {
		s, ok := k[idx].(string)
		if !ok {
			return dto.BinanceKlines{}, fmt.Errorf("field %d is not a string", idx)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return dto.BinanceKlines{}, err
		}
		prices[j] = v
	}

	return dto.BinanceKlines{
		OpenTime:                 int64(openTime),
		Open:                     prices[0],
		High:                     prices[1],
		Low:                      prices[2],
		Close:                    prices[3],
		Volume:                   prices[4],
		CloseTime:                int64(closeTime),
		QuoteAssetVolume:         prices[5],
		NumberOfTrades:           int64(trades),
		TakerBuyBaseAssetVolume:  prices[6],
		TakerBuyQuoteAssetVolume: prices[7],
	}, nil
}

func binanceInterval(interval string) string {
	switch interval {
	case common.INTERVAL_1WK:
		return "1w"
	case "":
		return common.INTERVAL_1D
	default:
		return interval
	}
}

// binanceSymbol maps Yahoo crypto symbols to exchange pairs, BTC-USD -> BTCUSDT.
func binanceSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if base, ok := strings.CutSuffix(s, "-USD"); ok {
		return base + "USDT"
	}
	return s
}
