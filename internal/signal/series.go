package signal

import "golang-backtest/internal/indicator"

// InstanceSeries holds the series each custom instance evaluates, keyed by
// instance id and then by component name. They are computed with the
// instance's own parameters, so they can differ from the run's indicator set.
type InstanceSeries map[string]map[string]indicator.Series

// Slice returns the entries in [start, end] of every series.
func (s InstanceSeries) Slice(start, end int) InstanceSeries {
	if s == nil {
		return nil
	}
	out := make(InstanceSeries, len(s))
	for id, components := range s {
		sliced := make(map[string]indicator.Series, len(components))
		for name, series := range components {
			sliced[name] = series.Slice(start, end)
		}
		out[id] = sliced
	}
	return out
}

// SeriesProvider is implemented by strategies that compile their own series.
type SeriesProvider interface {
	Series() InstanceSeries
}

// Series exposes the compiled series by instance id. The Ichimoku Chikou span
// is left out because the evaluator never reads it.
func (e *customEvaluator) Series() InstanceSeries {
	out := make(InstanceSeries, len(e.instances))
	for _, ci := range e.instances {
		out[ci.inst.ID] = ci.components()
	}
	return out
}

func (ci compiledInstance) components() map[string]indicator.Series {
	switch ci.inst.Kind {
	case KindMACD:
		return map[string]indicator.Series{"macd": ci.line, "signal": ci.signal, "histogram": ci.histogram}
	case KindStochastic:
		return map[string]indicator.Series{"k": ci.line, "d": ci.signal}
	case KindBollinger:
		return map[string]indicator.Series{
			"upper":  ci.bollinger.Upper,
			"middle": ci.bollinger.Middle,
			"lower":  ci.bollinger.Lower,
		}
	case KindSuperTrend:
		return map[string]indicator.Series{"direction": ci.line}
	case KindIchimoku:
		return map[string]indicator.Series{
			"tenkan":   ci.ichimoku.Tenkan,
			"kijun":    ci.ichimoku.Kijun,
			"senkou_a": ci.ichimoku.SenkouA,
			"senkou_b": ci.ichimoku.SenkouB,
		}
	case KindPivots:
		return map[string]indicator.Series{
			"pivot": ci.pivots.Pivot,
			"r1":    ci.pivots.R1,
			"s1":    ci.pivots.S1,
		}
	}
	return map[string]indicator.Series{"value": ci.line}
}
