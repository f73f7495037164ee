package utils

import (
	"fmt"
	"golang-backtest/pkg/common"
	"time"
)

// PeriodRange returns the [from, to] range covered by a period selector ending at now.
func PeriodRange(period string, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	switch period {
	case common.PERIOD_1M:
		return now.AddDate(0, -1, 0), now, nil
	case common.PERIOD_3M:
		return now.AddDate(0, -3, 0), now, nil
	case common.PERIOD_6M:
		return now.AddDate(0, -6, 0), now, nil
	case common.PERIOD_1Y:
		return now.AddDate(-1, 0, 0), now, nil
	case common.PERIOD_2Y:
		return now.AddDate(-2, 0, 0), now, nil
	case common.PERIOD_5Y:
		return now.AddDate(-5, 0, 0), now, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q", period)
	}
}
