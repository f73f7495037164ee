package signal

import (
	"strings"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/indicator"
)

// compiledInstance holds the series one instance reads. Which fields are set depends on the kind.
type compiledInstance struct {
	inst      Instance
	line      indicator.Series
	signal    indicator.Series
	histogram indicator.Series
	bollinger indicator.BollingerSeries
	ichimoku  indicator.IchimokuSeries
	pivots    indicator.PivotSeries
}

type customEvaluator struct {
	bars      []dto.PriceBar
	instances []compiledInstance
	entry     Combinator
	exit      Combinator
}

// Compile computes every instance's series over bars and returns the evaluator.
func (s CustomStrategy) Compile(bars []dto.PriceBar) Strategy {
	closes := closesOf(bars)
	ev := &customEvaluator{bars: bars, entry: s.entry, exit: s.exit}
	for _, in := range s.copyIndicators() {
		ev.instances = append(ev.instances, compileInstance(in, bars, closes))
	}
	return ev
}

func compileInstance(in Instance, bars []dto.PriceBar, closes []float64) compiledInstance {
	p := in.Params.withDefaults(in.Kind)
	ci := compiledInstance{inst: in}
	switch in.Kind {
	case KindRSI:
		ci.line = indicator.RSI(closes, p.Period)
	case KindEMA:
		ci.line = indicator.EMA(closes, p.Period)
	case KindSMA:
		ci.line = indicator.SMA(closes, p.Period)
	case KindMACD:
		m := indicator.MACD(closes, p.FastPeriod, p.SlowPeriod, p.SignalPeriod)
		ci.line, ci.signal, ci.histogram = m.MACD, m.Signal, m.Histogram
	case KindBollinger:
		ci.bollinger = indicator.Bollinger(closes, p.Period, p.StdDev)
	case KindStochastic:
		st := indicator.Stochastic(bars, p.KPeriod, p.DPeriod)
		ci.line, ci.signal = st.K, st.D
	case KindWilliamsR:
		ci.line = indicator.WilliamsR(bars, p.Period)
	case KindVWAP:
		ci.line = indicator.VWAP(bars, p.Period)
	case KindSuperTrend:
		ci.line = indicator.SuperTrend(bars, p.Period, p.Multiplier).Direction
	case KindIchimoku:
		ci.ichimoku = indicator.Ichimoku(bars, p.TenkanPeriod, p.KijunPeriod, p.SenkouBPeriod, p.Displacement)
	case KindPivots:
		ci.pivots = indicator.PivotPoints(bars)
	case KindOBV:
		ci.line = indicator.OBV(bars)
	}
	return ci
}

// Evaluate checks the entry conditions while flat and the exit conditions while holding.
func (e *customEvaluator) Evaluate(i int, holding bool) Decision {
	if holding {
		if ok, fired := e.aggregate(i, e.exit, func(in Instance) []Condition { return in.Exit }); ok {
			return sell("Custom exit: %s", strings.Join(fired, ", "))
		}
		return Hold()
	}
	if ok, fired := e.aggregate(i, e.entry, func(in Instance) []Condition { return in.Entry }); ok {
		return buy("Custom entry: %s", strings.Join(fired, ", "))
	}
	return Hold()
}

// aggregate folds the selected conditions of every instance. AND needs at least
// one evaluated condition and all of them true; OR needs one true condition.
// The custom placeholder is skipped and does not count as evaluated.
func (e *customEvaluator) aggregate(i int, comb Combinator, pick func(Instance) []Condition) (bool, []string) {
	var (
		evaluated int
		fired     []string
	)
	for k := range e.instances {
		ci := &e.instances[k]
		for _, c := range pick(ci.inst) {
			if c.Kind == CondCustom {
				continue
			}
			evaluated++
			if e.check(ci, c, i) {
				fired = append(fired, ci.inst.ID+" "+string(c.Kind))
			} else if comb != CombinatorAny {
				return false, nil
			}
		}
	}
	if comb == CombinatorAny {
		return len(fired) > 0, fired
	}
	return evaluated > 0, fired
}

// check reports whether c holds at bar i. Missing input is false.
func (e *customEvaluator) check(ci *compiledInstance, c Condition, i int) bool {
	kind := ci.inst.Kind
	switch kind {
	case KindRSI, KindWilliamsR:
		return thresholdCondition(ci.line, c.Kind, c.threshold(kind), i)
	case KindStochastic:
		switch c.Kind {
		case CondKCrossesAboveD, CondKCrossesBelowD:
			return seriesCross(ci.line, ci.signal, c.Kind == CondKCrossesAboveD, i)
		}
		return thresholdCondition(ci.line, c.Kind, c.threshold(kind), i)
	case KindEMA, KindSMA, KindVWAP:
		return e.priceVersus(ci.line, c.Kind, i)
	case KindMACD:
		return macdCondition(ci, c.Kind, i)
	case KindBollinger:
		return e.bollingerCondition(ci.bollinger, c.Kind, i)
	case KindSuperTrend:
		return superTrendCondition(ci.line, c.Kind, i)
	case KindIchimoku:
		return e.ichimokuCondition(ci.ichimoku, c.Kind, i)
	case KindPivots:
		return e.pivotCondition(ci.pivots, c.Kind, i)
	case KindOBV:
		prev, cur, ok := ci.line.Pair(i)
		switch c.Kind {
		case CondRising:
			return ok && cur > prev
		case CondFalling:
			return ok && cur < prev
		}
	}
	return false
}

func thresholdCondition(s indicator.Series, kind ConditionKind, th float64, i int) bool {
	switch kind {
	case CondOversold:
		v, ok := s.At(i)
		return ok && v < th
	case CondOverbought:
		v, ok := s.At(i)
		return ok && v > th
	case CondCrossesAbove:
		prev, cur, ok := s.Pair(i)
		return ok && prev <= th && cur > th
	case CondCrossesBelow:
		prev, cur, ok := s.Pair(i)
		return ok && prev >= th && cur < th
	}
	return false
}

func seriesCross(a, b indicator.Series, up bool, i int) bool {
	prevA, curA, okA := a.Pair(i)
	prevB, curB, okB := b.Pair(i)
	if !okA || !okB {
		return false
	}
	if up {
		return crossedAbove(prevA, curA, prevB, curB)
	}
	return crossedBelow(prevA, curA, prevB, curB)
}

func (e *customEvaluator) priceVersus(line indicator.Series, kind ConditionKind, i int) bool {
	price, okP := closeAt(e.bars, i)
	v, okV := line.At(i)
	if !okP || !okV {
		return false
	}
	switch kind {
	case CondPriceAbove:
		return price > v
	case CondPriceBelow:
		return price < v
	case CondPriceCrossesAbove, CondPriceCrossesBelow:
		prevPrice, okPP := closeAt(e.bars, i-1)
		prevV, okPV := line.At(i - 1)
		if !okPP || !okPV {
			return false
		}
		if kind == CondPriceCrossesAbove {
			return crossedAbove(prevPrice, price, prevV, v)
		}
		return crossedBelow(prevPrice, price, prevV, v)
	}
	return false
}

func macdCondition(ci *compiledInstance, kind ConditionKind, i int) bool {
	switch kind {
	case CondCrossesAboveSignal:
		return seriesCross(ci.line, ci.signal, true, i)
	case CondCrossesBelowSignal:
		return seriesCross(ci.line, ci.signal, false, i)
	case CondHistogramPositive:
		v, ok := ci.histogram.At(i)
		return ok && v > 0
	case CondHistogramNegative:
		v, ok := ci.histogram.At(i)
		return ok && v < 0
	case CondAboveZero:
		v, ok := ci.line.At(i)
		return ok && v > 0
	case CondBelowZero:
		v, ok := ci.line.At(i)
		return ok && v < 0
	}
	return false
}

func (e *customEvaluator) bollingerCondition(b indicator.BollingerSeries, kind ConditionKind, i int) bool {
	if i < 0 || i >= len(e.bars) {
		return false
	}
	bar := e.bars[i]
	switch kind {
	case CondTouchesLower:
		v, ok := b.Lower.At(i)
		return ok && bar.Low <= v
	case CondTouchesUpper:
		v, ok := b.Upper.At(i)
		return ok && bar.High >= v
	case CondPriceAboveMiddle:
		v, ok := b.Middle.At(i)
		return ok && bar.Close > v
	case CondPriceBelowMiddle:
		v, ok := b.Middle.At(i)
		return ok && bar.Close < v
	}
	return false
}

func superTrendCondition(direction indicator.Series, kind ConditionKind, i int) bool {
	switch kind {
	case CondUptrend:
		v, ok := direction.At(i)
		return ok && v > 0
	case CondDowntrend:
		v, ok := direction.At(i)
		return ok && v < 0
	case CondTurnsUp:
		prev, cur, ok := direction.Pair(i)
		return ok && prev < 0 && cur > 0
	case CondTurnsDown:
		prev, cur, ok := direction.Pair(i)
		return ok && prev > 0 && cur < 0
	}
	return false
}

// ichimokuCondition never reads the Chikou span, which looks ahead.
func (e *customEvaluator) ichimokuCondition(s indicator.IchimokuSeries, kind ConditionKind, i int) bool {
	switch kind {
	case CondPriceAboveCloud, CondPriceBelowCloud:
		price, okP := closeAt(e.bars, i)
		top, bottom, okC := s.CloudAt(i)
		if !okP || !okC {
			return false
		}
		if kind == CondPriceAboveCloud {
			return price > top
		}
		return price < bottom
	case CondTenkanCrossesAboveKijun:
		return seriesCross(s.Tenkan, s.Kijun, true, i)
	case CondTenkanCrossesBelowKijun:
		return seriesCross(s.Tenkan, s.Kijun, false, i)
	}
	return false
}

// pivotCondition compares closes against the levels of bar i, which derive from bar i-1.
func (e *customEvaluator) pivotCondition(p indicator.PivotSeries, kind ConditionKind, i int) bool {
	price, okP := closeAt(e.bars, i)
	if !okP {
		return false
	}
	level := func(s indicator.Series) (float64, bool) { return s.At(i) }
	switch kind {
	case CondPriceAbovePivot:
		v, ok := level(p.Pivot)
		return ok && price > v
	case CondPriceBelowPivot:
		v, ok := level(p.Pivot)
		return ok && price < v
	case CondBreaksR1, CondBreaksS1:
		prevPrice, okPrev := closeAt(e.bars, i-1)
		if !okPrev {
			return false
		}
		if kind == CondBreaksR1 {
			v, ok := level(p.R1)
			return ok && prevPrice <= v && price > v
		}
		v, ok := level(p.S1)
		return ok && prevPrice >= v && price < v
	}
	return false
}
