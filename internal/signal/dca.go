package signal

import (
	"fmt"

	"golang-backtest/internal/dto"
)

type Cadence string

const (
	CadenceDaily    Cadence = "daily"
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly"
	CadenceMonthly  Cadence = "monthly"
)

const dayMillis = int64(24 * 60 * 60 * 1000)

// Interval returns the cadence length in milliseconds. A month is 30 days.
func (c Cadence) Interval() (int64, error) {
	switch c {
	case CadenceDaily:
		return dayMillis, nil
	case CadenceWeekly:
		return 7 * dayMillis, nil
	case CadenceBiweekly:
		return 14 * dayMillis, nil
	case CadenceMonthly:
		return 30 * dayMillis, nil
	}
	return 0, fmt.Errorf("unknown dca cadence %q", c)
}

// DCA buys on the first evaluated bar and then whenever the cadence has
// elapsed since the previous buy. It never sells; the simulator liquidates at
// the end of the series. A DCA value carries per-run state and must not be
// reused across runs.
type DCA struct {
	bars     []dto.PriceBar
	cadence  Cadence
	interval int64
	lastBuy  int64
	bought   bool
}

func NewDCA(bars []dto.PriceBar, cadence Cadence) (*DCA, error) {
	interval, err := cadence.Interval()
	if err != nil {
		return nil, err
	}
	return &DCA{bars: bars, cadence: cadence, interval: interval}, nil
}

func (d *DCA) Evaluate(i int, _ bool) Decision {
	if i < 0 || i >= len(d.bars) {
		return Hold()
	}
	ts := d.bars[i].Timestamp
	if d.bought && ts-d.lastBuy < d.interval {
		return Hold()
	}
	d.bought = true
	d.lastBuy = ts
	return buy("DCA %s buy", d.cadence)
}
