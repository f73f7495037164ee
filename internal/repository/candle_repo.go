package repository

import (
	"context"
	"errors"
	"fmt"
	"golang-backtest/internal/dto"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/common"
	"golang-backtest/pkg/logger"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultPriceTTL = 30 * time.Minute

// ErrPriceDataUnavailable is wrapped by every PriceDataError.
var ErrPriceDataUnavailable = errors.New("price data unavailable")

// PriceDataError is returned when no provider and no cached copy can serve a request.
type PriceDataError struct {
	Symbol   string
	Range    string
	Interval string
	Causes   []error
}

func (e *PriceDataError) Error() string {
	msg := fmt.Sprintf("price data unavailable for %s (%s, %s)", e.Symbol, e.Range, e.Interval)
	if len(e.Causes) > 0 {
		msg += ": " + errors.Join(e.Causes...).Error()
	}
	return msg
}

func (e *PriceDataError) Unwrap() []error {
	return append([]error{ErrPriceDataUnavailable}, e.Causes...)
}

// PriceProvider is one upstream source of OHLCV bars.
type PriceProvider interface {
	Name() string
	Get(ctx context.Context, param dto.GetStockDataParam) (*dto.StockData, error)
}

type CandleRepository interface {
	// Fetch returns ascending bars, unique by timestamp. Fresh cache first, then
	// the providers in order, then the stale copy. Otherwise a *PriceDataError.
	Fetch(ctx context.Context, param dto.GetStockDataParam) (*dto.StockData, error)
}

type candleRepository struct {
	binanceRepo PriceProvider
	yahooRepo   PriceProvider
	cache       cache.Cache
	ttl         time.Duration
	log         *logger.Logger
}

func NewCandleRepository(binanceRepo, yahooRepo PriceProvider, c cache.Cache, ttl time.Duration, log *logger.Logger) CandleRepository {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &candleRepository{
		binanceRepo: binanceRepo,
		yahooRepo:   yahooRepo,
		cache:       c,
		ttl:         ttl,
		log:         log,
	}
}

func (r *candleRepository) Fetch(ctx context.Context, param dto.GetStockDataParam) (*dto.StockData, error) {
	param.Symbol = strings.ToUpper(strings.TrimSpace(param.Symbol))
	if param.Interval == "" {
		param.Interval = common.INTERVAL_1D
	}
	freshKey := fmt.Sprintf(common.KEY_PRICE_DATA, param.Symbol, param.Range, param.Interval)
	staleKey := fmt.Sprintf(common.KEY_PRICE_DATA_STALE, param.Symbol, param.Range, param.Interval)

	if data, ok := cache.GetFromCache[*dto.StockData](r.cache, freshKey); ok {
		return withSource(data, common.PROVIDER_CACHE), nil
	}

	var causes []error
	for _, provider := range r.providersFor(param.Symbol) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := provider.Get(ctx, param)
		if err == nil {
			data.Bars = normalizeBars(data.Bars)
			if len(data.Bars) == 0 {
				err = errors.New("provider returned no usable bars")
			}
		}
		if err != nil {
			r.log.WarnContext(ctx, "Price provider failed",
				logger.StringField("provider", provider.Name()),
				logger.StringField("symbol", param.Symbol),
				logger.ErrorField(err))
			causes = append(causes, fmt.Errorf("%s: %w", provider.Name(), err))
			continue
		}

		if r.cache != nil {
			r.cache.Set(freshKey, data, r.ttl)
			r.cache.Set(staleKey, data, cache.NoExpiration)
		}
		return withSource(data, data.Source), nil
	}

	if data, ok := cache.GetFromCache[*dto.StockData](r.cache, staleKey); ok {
		r.log.WarnContext(ctx, "Serving stale price data",
			logger.StringField("symbol", param.Symbol),
			logger.StringField("range", param.Range))
		return withSource(data, common.PROVIDER_STALE_CACHE), nil
	}

	return nil, &PriceDataError{
		Symbol:   param.Symbol,
		Range:    param.Range,
		Interval: param.Interval,
		Causes:   causes,
	}
}

// providersFor puts Binance first for exchange pairs and Yahoo first otherwise.
// Plain equity tickers are not listed on Binance and go to Yahoo only.
func (r *candleRepository) providersFor(symbol string) []PriceProvider {
	var providers []PriceProvider
	add := func(p PriceProvider) {
		if p != nil {
			providers = append(providers, p)
		}
	}
	switch {
	case IsCryptoPair(symbol):
		add(r.binanceRepo)
		add(r.yahooRepo)
	case strings.HasSuffix(symbol, "-USD"):
		add(r.yahooRepo)
		add(r.binanceRepo)
	default:
		add(r.yahooRepo)
	}
	return providers
}

func IsCryptoPair(symbol string) bool {
	s := strings.ToUpper(symbol)
	for _, quote := range []string{"USDT", "BUSD", "USDC"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return true
		}
	}
	return false
}

// normalizeBars sorts by timestamp, keeps the last bar per timestamp and drops
// bars without a positive close.
func normalizeBars(bars []dto.PriceBar) []dto.PriceBar {
	out := make([]dto.PriceBar, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })

	deduped := out[:0]
	for _, b := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp == b.Timestamp {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}
	return deduped
}

// withSource returns a copy so callers never share the cached bar slice.
func withSource(data *dto.StockData, source string) *dto.StockData {
	cp := *data
	cp.Source = source
	cp.Bars = append([]dto.PriceBar(nil), data.Bars...)
	return &cp
}

func newRequestLimiter(maxPerMinute int) *rate.Limiter {
	if maxPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxPerMinute)), 1)
}
