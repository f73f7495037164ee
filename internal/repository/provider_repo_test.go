package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"golang-backtest/config"
	"golang-backtest/internal/dto"
	"golang-backtest/pkg/httpclient"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient decodes a canned JSON body into the result, like resty does.
type stubClient struct {
	status int
	bodies []string
	calls  []map[string]string
	paths  []string
}

func (s *stubClient) Get(_ context.Context, endpoint string, query map[string]string, _ map[string]string, result interface{}) (*httpclient.BaseResponse, error) {
	s.paths = append(s.paths, endpoint)
	s.calls = append(s.calls, query)
	body := s.bodies[0]
	if len(s.bodies) > 1 {
		s.bodies = s.bodies[1:]
	}
	if s.status == http.StatusOK {
		if err := json.Unmarshal([]byte(body), result); err != nil {
			return nil, err
		}
	}
	return &httpclient.BaseResponse{StatusCode: s.status, Body: []byte(body)}, nil
}

var fixedNow = func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) }

func TestYahooFinance_Get(t *testing.T) {
	client := &stubClient{status: http.StatusOK, bodies: []string{`{"chart":{"result":[{"meta":{"symbol":"BTC-USD"},
		"timestamp":[1704067200,1704153600,1704240000],
		"indicators":{"quote":[{"open":[1,2,null],"high":[1.5,2.5,3.5],"low":[0.5,1.5,2.5],"close":[1.2,2.2,3.2],"volume":[10,null,30]}]}}],"error":null}}`}}
	repo := newYahooFinanceRepository(client, config.Provider{}, logger.NewNop())
	repo.now = fixedNow

	data, err := repo.Get(context.Background(), dto.GetStockDataParam{Symbol: "BTCUSDT", Range: "1m", Interval: "1d"})
	require.NoError(t, err)

	assert.Equal(t, "/BTC-USD", client.paths[0])
	assert.Equal(t, "1d", client.calls[0]["interval"])
	assert.Equal(t, "1702166400", client.calls[0]["period1"])
	require.Len(t, data.Bars, 2, "bar with a null open is skipped")
	assert.Equal(t, int64(1704067200000), data.Bars[0].Timestamp)
	assert.Equal(t, 0.0, data.Bars[1].Volume)
	assert.Equal(t, "yahoo_finance", data.Source)
}

func TestYahooFinance_Errors(t *testing.T) {
	repo := newYahooFinanceRepository(&stubClient{status: http.StatusNotFound, bodies: []string{`{}`}}, config.Provider{}, logger.NewNop())
	_, err := repo.Get(context.Background(), dto.GetStockDataParam{Symbol: "NOPE", Range: "1y", Interval: "1d"})
	assert.ErrorContains(t, err, "status: 404")

	_, err = repo.Get(context.Background(), dto.GetStockDataParam{Symbol: "AAPL", Range: "7y"})
	assert.ErrorContains(t, err, "invalid period")

	empty := newYahooFinanceRepository(&stubClient{status: http.StatusOK, bodies: []string{`{"chart":{"result":[]}}`}}, config.Provider{}, logger.NewNop())
	_, err = empty.Get(context.Background(), dto.GetStockDataParam{Symbol: "AAPL", Range: "1y", Interval: "1d"})
	assert.ErrorContains(t, err, "no data returned")
}

func TestBinance_GetPaginates(t *testing.T) {
	from, _, err := utils.PeriodRange("1y", fixedNow())
	require.NoError(t, err)
	start := from.UnixMilli()

	page := func(first int64, n int) string {
		rows := make([][]interface{}, n)
		for i := range rows {
			ts := float64(first + int64(i))
			rows[i] = []interface{}{ts, "1.0", "2.0", "0.5", "1.5", "100", ts + 1, "150", 12.0, "50", "75"}
		}
		b, _ := json.Marshal(rows)
		return string(b)
	}
	client := &stubClient{status: http.StatusOK, bodies: []string{page(start, 1000), page(start+1000, 3)}}
	repo := newBinanceRepository(client, config.Provider{}, logger.NewNop())
	repo.now = fixedNow

	data, err := repo.Get(context.Background(), dto.GetStockDataParam{Symbol: "btc-usd", Range: "1y", Interval: "1wk"})
	require.NoError(t, err)

	require.Len(t, client.calls, 2)
	assert.Equal(t, "BTCUSDT", client.calls[0]["symbol"])
	assert.Equal(t, "1w", client.calls[0]["interval"])
	assert.Equal(t, strconv.FormatInt(start, 10), client.calls[0]["startTime"])
	assert.Equal(t, strconv.FormatInt(start+1000, 10), client.calls[1]["startTime"])
	assert.Len(t, data.Bars, 1003)
	assert.Equal(t, start+1002, data.Bars[1002].Timestamp)
	assert.Equal(t, 1.5, data.Bars[0].Close)
	assert.Equal(t, "binance", data.Source)
}

func TestBinance_GetStopsWhenPagesDoNotAdvance(t *testing.T) {
	rows := make([][]interface{}, binanceKlinesLimit)
	for i := range rows {
		rows[i] = []interface{}{float64(i), "1.0", "2.0", "0.5", "1.5", "100", float64(i + 1), "150", 12.0, "50", "75"}
	}
	b, _ := json.Marshal(rows)
	client := &stubClient{status: http.StatusOK, bodies: []string{string(b)}}
	repo := newBinanceRepository(client, config.Provider{}, logger.NewNop())
	repo.now = fixedNow

	data, err := repo.Get(context.Background(), dto.GetStockDataParam{Symbol: "BTCUSDT", Range: "1y", Interval: "1d"})
	require.NoError(t, err)
	assert.Len(t, client.calls, 1)
	assert.Len(t, data.Bars, binanceKlinesLimit)
}

func TestParseKline_RejectsMalformedRows(t *testing.T) {
	_, err := parseKline([]interface{}{1.0, "1"})
	assert.Error(t, err)

	_, err = parseKline([]interface{}{1.0, 1.0, "2", "0.5", "1.5", "100", 2.0, "150", 12.0, "50", "75"})
	assert.Error(t, err)
}

func TestSymbolMapping(t *testing.T) {
	assert.Equal(t, "BTC-USD", yahooSymbol("btcusdt"))
	assert.Equal(t, "AAPL", yahooSymbol("AAPL"))
	assert.Equal(t, "USDT", yahooSymbol("USDT"))
	assert.Equal(t, "ETHUSDT", binanceSymbol("ETH-USD"))
	assert.True(t, IsCryptoPair("ethusdc"))
	assert.False(t, IsCryptoPair("MSFT"))
}
