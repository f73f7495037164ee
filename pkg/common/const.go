package common

const (
	KEY_PRICE_DATA       = "price_data:%s:%s:%s"
	KEY_PRICE_DATA_STALE = "price_data_stale:%s:%s:%s"
	KEY_BACKTEST_RESULT  = "backtest_result:%s"
)

const (
	PROVIDER_YAHOO_FINANCE = "yahoo_finance"
	PROVIDER_BINANCE       = "binance"
	PROVIDER_CACHE         = "cache"
	PROVIDER_STALE_CACHE   = "stale_cache"
)

const (
	PERIOD_1M = "1m"
	PERIOD_3M = "3m"
	PERIOD_6M = "6m"
	PERIOD_1Y = "1y"
	PERIOD_2Y = "2y"
	PERIOD_5Y = "5y"
)

const (
	INTERVAL_1H  = "1h"
	INTERVAL_1D  = "1d"
	INTERVAL_1WK = "1wk"
)
