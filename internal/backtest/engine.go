package backtest

import (
	"context"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/signal"
)

// ctxCheckEvery is how many bars run between cancellation checks.
const ctxCheckEvery = 512

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.PositionSizePct <= 0 {
		cfg.PositionSizePct = 100
	}
	return &Engine{cfg: cfg}
}

// Run walks bars from index 1; bar 0 only serves as the previous bar of the
// first evaluation. Each bar resolves stop-loss and take-profit first, then the
// strategy decision, then the forced exit on the final bar. One capital point
// is recorded per simulated bar. Run performs no I/O; a cancelled ctx discards
// the state and returns ctx.Err().
func (e *Engine) Run(ctx context.Context, bars []dto.PriceBar, strategy signal.Strategy) (*State, error) {
	state := &State{
		Cash:           e.cfg.InitialCapital,
		Trades:         []dto.Trade{},
		CapitalHistory: make([]dto.EquityPoint, 0, max(len(bars)-1, 0)),
	}

	last := len(bars) - 1
	for i := 1; i <= last; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		bar := bars[i]

		exited := false
		if state.Position.IsOpen && !e.cfg.IsDCA() {
			if price, reason, hit := e.riskExit(state.Position, bar); hit {
				e.sell(state, bar.Timestamp, price, reason)
				exited = true
			}
		}

		if !exited {
			d := strategy.Evaluate(i, state.Position.IsOpen)
			switch d.Action {
			case signal.ActionBuy:
				if !state.Position.IsOpen || e.cfg.IsDCA() {
					e.buy(state, bar, d.Reason)
				}
			case signal.ActionSell:
				if state.Position.IsOpen && !e.cfg.IsDCA() {
					e.sell(state, bar.Timestamp, bar.Close, d.Reason)
				}
			}
		}

		if i == last && state.Position.IsOpen {
			e.sell(state, bar.Timestamp, bar.Close, ReasonEndOfPeriod)
		}

		state.CapitalHistory = append(state.CapitalHistory, dto.EquityPoint{
			Timestamp: bar.Timestamp,
			Value:     state.Cash + state.Position.Quantity*bar.Close,
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return state, nil
}

// riskExit resolves stop-loss and take-profit against the bar's range.
//
// The order of prices inside a bar is unknown. When both levels are crossed,
// a bearish bar (open > close) is assumed to have traded open, high, low,
// close and fills the take-profit; a bullish or doji bar is assumed to have
// traded open, low, high, close and fills the stop-loss. An open already
// beyond a level fills at the open.
func (e *Engine) riskExit(pos Position, bar dto.PriceBar) (price float64, reason string, hit bool) {
	var (
		slPrice, tpPrice float64
		slHit, tpHit     bool
	)
	if e.cfg.StopLossPct > 0 {
		slPrice = pos.AverageCost * (1 - e.cfg.StopLossPct/100)
		slHit = bar.Low <= slPrice
	}
	if e.cfg.TakeProfitPct > 0 {
		tpPrice = pos.AverageCost * (1 + e.cfg.TakeProfitPct/100)
		tpHit = bar.High >= tpPrice
	}

	stop := func() (float64, string, bool) {
		if bar.Open <= slPrice {
			return bar.Open, ReasonStopLoss, true
		}
		return slPrice, ReasonStopLoss, true
	}
	take := func() (float64, string, bool) {
		if bar.Open >= tpPrice {
			return bar.Open, ReasonTakeProfit, true
		}
		return tpPrice, ReasonTakeProfit, true
	}

	switch {
	case slHit && tpHit:
		switch {
		case bar.Open <= slPrice:
			return stop()
		case bar.Open >= tpPrice:
			return take()
		case bar.IsBearish():
			return take()
		default:
			return stop()
		}
	case slHit:
		return stop()
	case tpHit:
		return take()
	}
	return 0, "", false
}

// buy opens or, for DCA, adds to the position at the bar close. Orders below
// the minimum notional or above the available cash are dropped.
func (e *Engine) buy(state *State, bar dto.PriceBar, reason string) {
	notional := state.Cash * (e.cfg.PositionSizePct / 100)
	if e.cfg.IsDCA() {
		notional = e.cfg.DCA.AmountPerBuy
	}
	if notional <= 0 || notional < e.cfg.MinNotional || notional > state.Cash || bar.Close <= 0 {
		return
	}

	fee := notional * e.cfg.FeePct / 100
	qty := (notional - fee) / bar.Close
	if qty <= 0 {
		return
	}

	pos := &state.Position
	pos.AverageCost = (pos.Quantity*pos.AverageCost + qty*bar.Close) / (pos.Quantity + qty)
	pos.Quantity += qty
	pos.TotalInvested += notional
	if !pos.IsOpen {
		pos.IsOpen = true
		pos.OpenedAt = bar.Timestamp
	}
	state.Cash -= notional

	state.Trades = append(state.Trades, dto.Trade{
		Type:      dto.TradeBuy,
		Timestamp: bar.Timestamp,
		Price:     bar.Close,
		Quantity:  qty,
		Fee:       fee,
		Reason:    reason,
	})
}

// sell closes the whole position. Realized PnL is net of the sell fee and
// measured against everything invested, buy fees included.
func (e *Engine) sell(state *State, ts int64, price float64, reason string) {
	pos := state.Position
	proceeds := pos.Quantity * price
	fee := proceeds * e.cfg.FeePct / 100
	pnl := proceeds - fee - pos.TotalInvested
	var pnlPct float64
	if pos.TotalInvested > 0 {
		pnlPct = pnl / pos.TotalInvested * 100
	}

	state.Cash += proceeds - fee
	state.Position = Position{}
	state.Trades = append(state.Trades, dto.Trade{
		Type:           dto.TradeSell,
		Timestamp:      ts,
		Price:          price,
		Quantity:       pos.Quantity,
		Fee:            fee,
		Reason:         reason,
		RealizedPnL:    &pnl,
		RealizedPnLPct: &pnlPct,
	})
}
