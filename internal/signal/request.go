package signal

import (
	"errors"
	"fmt"

	"golang-backtest/internal/dto"
)

// FromRequest converts the strategy part of a validated request into a Config.
func FromRequest(req dto.BacktestRequest) (Config, error) {
	cfg := Config{Thresholds: DefaultThresholds()}
	if s := req.Indicators; s != nil {
		if s.RSIOversold > 0 {
			cfg.Thresholds.RSIOversold = s.RSIOversold
		}
		if s.RSIOverbought > 0 {
			cfg.Thresholds.RSIOverbought = s.RSIOverbought
		}
	}

	switch req.Strategy.Type {
	case dto.StrategyTypeRecommended:
		id := RecommendedID(req.Strategy.RecommendedID)
		if !id.Valid() {
			return Config{}, fmt.Errorf("unknown recommended strategy %q", req.Strategy.RecommendedID)
		}
		cfg.Recommended = id
		if id == RecommendedDCA {
			if req.DCA == nil {
				return Config{}, errors.New("dca settings are required for the dca strategy")
			}
			cfg.Cadence = Cadence(req.DCA.Cadence)
			if _, err := cfg.Cadence.Interval(); err != nil {
				return Config{}, err
			}
		}
	case dto.StrategyTypeCustom:
		if req.Strategy.Custom == nil {
			return Config{}, errors.New("custom strategy definition is required")
		}
		custom, err := CustomFromRequest(*req.Strategy.Custom)
		if err != nil {
			return Config{}, err
		}
		cfg.Custom = &custom
	default:
		return Config{}, fmt.Errorf("unknown strategy type %q", req.Strategy.Type)
	}
	return cfg, nil
}

// CustomFromRequest builds a CustomStrategy through the builder so every
// condition is checked against its indicator kind.
func CustomFromRequest(req dto.CustomStrategyRequest) (CustomStrategy, error) {
	s := NewCustomStrategy()
	var err error
	if req.EntryCombinator != "" {
		if s, err = s.WithEntryCombinator(Combinator(req.EntryCombinator)); err != nil {
			return CustomStrategy{}, err
		}
	}
	if req.ExitCombinator != "" {
		if s, err = s.WithExitCombinator(Combinator(req.ExitCombinator)); err != nil {
			return CustomStrategy{}, err
		}
	}

	for n, in := range req.Indicators {
		id := in.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", in.Kind, n+1)
		}
		if s, err = s.AddIndicator(id, IndicatorKind(in.Kind), paramsFromRequest(in.Params)); err != nil {
			return CustomStrategy{}, fmt.Errorf("indicator %d: %w", n, err)
		}
		for _, c := range in.EntryConditions {
			if s, err = s.AddEntryCondition(id, conditionFromRequest(c)); err != nil {
				return CustomStrategy{}, fmt.Errorf("indicator %s entry: %w", id, err)
			}
		}
		for _, c := range in.ExitConditions {
			if s, err = s.AddExitCondition(id, conditionFromRequest(c)); err != nil {
				return CustomStrategy{}, fmt.Errorf("indicator %s exit: %w", id, err)
			}
		}
	}
	return s, nil
}

func paramsFromRequest(p dto.IndicatorParams) Params {
	return Params{
		Period:        p.Period,
		FastPeriod:    p.FastPeriod,
		SlowPeriod:    p.SlowPeriod,
		SignalPeriod:  p.SignalPeriod,
		KPeriod:       p.KPeriod,
		DPeriod:       p.DPeriod,
		StdDev:        p.StdDev,
		Multiplier:    p.Multiplier,
		TenkanPeriod:  p.TenkanPeriod,
		KijunPeriod:   p.KijunPeriod,
		SenkouBPeriod: p.SenkouBPeriod,
		Displacement:  p.Displacement,
	}
}

func conditionFromRequest(c dto.ConditionRequest) Condition {
	cond := Condition{Kind: ConditionKind(c.Kind)}
	if c.Threshold != nil {
		th := *c.Threshold
		cond.Threshold = &th
	}
	return cond
}
