package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/service"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type backtestFlags struct {
	requestFile     string
	customFile      string
	symbol          string
	period          string
	interval        string
	strategy        string
	initialCapital  float64
	positionSizePct float64
	stopLossPct     float64
	takeProfitPct   float64
	feePct          float64
	dcaAmount       float64
	dcaCadence      string
	metricsOnly     bool
}

var btFlags backtestFlags

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a single backtest and print the result as JSON",
	Example: `  golang-backtest backtest --symbol AAPL --period 1y --strategy ema_cross
  golang-backtest backtest --symbol BTCUSDT --period 6m --strategy dca --dca-amount 100 --dca-cadence weekly
  golang-backtest backtest --request request.json`,
	RunE: runBacktestCommand,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&btFlags.requestFile, "request", "", "JSON file holding a full backtest request; other flags are ignored")
	f.StringVar(&btFlags.customFile, "custom", "", "JSON file holding a custom strategy, used with --strategy custom")
	f.StringVar(&btFlags.symbol, "symbol", "", "ticker or crypto pair, e.g. AAPL or BTCUSDT")
	f.StringVar(&btFlags.period, "period", "1y", "history period: 1m, 3m, 6m, 1y, 2y or 5y")
	f.StringVar(&btFlags.interval, "interval", "1d", "bar interval: 1h, 1d or 1wk")
	f.StringVar(&btFlags.strategy, "strategy", "ema_cross", "recommended strategy id, or custom")
	f.Float64Var(&btFlags.initialCapital, "capital", 10000, "initial capital")
	f.Float64Var(&btFlags.positionSizePct, "position-size", 100, "percent of cash used per entry")
	f.Float64Var(&btFlags.stopLossPct, "stop-loss", 0, "stop loss percent, 0 disables")
	f.Float64Var(&btFlags.takeProfitPct, "take-profit", 0, "take profit percent, 0 disables")
	f.Float64Var(&btFlags.feePct, "fee", -1, "fee percent per trade; negative uses the configured fee")
	f.Float64Var(&btFlags.dcaAmount, "dca-amount", 0, "amount per DCA buy")
	f.StringVar(&btFlags.dcaCadence, "dca-cadence", "weekly", "DCA cadence: daily, weekly, biweekly or monthly")
	f.BoolVar(&btFlags.metricsOnly, "metrics-only", false, "print only the metrics")
}

func (f backtestFlags) request() (dto.BacktestRequest, error) {
	var req dto.BacktestRequest
	if f.requestFile != "" {
		if err := readJSONFile(f.requestFile, &req); err != nil {
			return req, err
		}
		return req, nil
	}

	req = dto.BacktestRequest{
		Symbol:          f.symbol,
		Period:          f.period,
		Interval:        f.interval,
		InitialCapital:  f.initialCapital,
		PositionSizePct: f.positionSizePct,
		StopLossPct:     f.stopLossPct,
		TakeProfitPct:   f.takeProfitPct,
		Strategy:        dto.StrategyRequest{Type: dto.StrategyTypeRecommended, RecommendedID: f.strategy},
	}
	if f.feePct >= 0 {
		fee := f.feePct
		req.FeePct = &fee
	}
	if f.dcaAmount > 0 {
		req.DCA = &dto.DCARequest{AmountPerBuy: f.dcaAmount, Cadence: f.dcaCadence}
	}
	if f.strategy == dto.StrategyTypeCustom {
		custom := new(dto.CustomStrategyRequest)
		if err := readJSONFile(f.customFile, custom); err != nil {
			return req, err
		}
		req.Strategy = dto.StrategyRequest{Type: dto.StrategyTypeCustom, Custom: custom}
	}
	return req, nil
}

func readJSONFile(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func runBacktestCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req, err := btFlags.request()
	if err != nil {
		return err
	}

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		return fmt.Errorf("failed to create app dependency: %w", err)
	}
	defer func() {
		if err := appDep.Close(); err != nil {
			log.Printf("Failed to close app dependency: %v", err)
		}
	}()

	if err := appDep.validator.Struct(req); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	repo := repository.NewRepository(appDep.cfg, appDep.gormDB(), appDep.cache, appDep.log)
	backtestService := service.NewBacktestService(appDep.cfg, appDep.log, repo.CandleRepo, repo.BacktestRunRepo, appDep.cache)
	result := backtestService.RunBacktest(ctx, req)

	var out interface{} = result
	if btFlags.metricsOnly && result.Success {
		out = result.Metrics
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("backtest failed: %s", result.Error)
	}
	return nil
}
