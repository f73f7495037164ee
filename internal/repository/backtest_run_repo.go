package repository

import (
	"context"
	"errors"
	"golang-backtest/internal/model"
	"golang-backtest/pkg/utils"
	"strings"
	"time"

	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("backtest run not found")

type BacktestRunRepository interface {
	Create(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error
	GetByID(ctx context.Context, id string) (*model.BacktestRun, error)
	List(ctx context.Context, param model.ListBacktestRunParam) ([]model.BacktestRun, error)
	DeleteOlderThan(ctx context.Context, date time.Time) (int64, error)
}

type backtestRunRepository struct {
	db *gorm.DB
}

func NewBacktestRunRepository(db *gorm.DB) BacktestRunRepository {
	return &backtestRunRepository{db: db}
}

func (r *backtestRunRepository) Create(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db, opts...)
	return db.WithContext(ctx).Create(run).Error
}

func (r *backtestRunRepository) GetByID(ctx context.Context, id string) (*model.BacktestRun, error) {
	var run model.BacktestRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns summaries newest first. Trades are not loaded.
func (r *backtestRunRepository) List(ctx context.Context, param model.ListBacktestRunParam) ([]model.BacktestRun, error) {
	opts := []utils.DBOption{
		utils.WithOrder("created_at DESC"),
		utils.WithLimit(param.Limit),
		utils.WithOffset(param.Offset),
	}
	if param.Symbol != "" {
		opts = append(opts, utils.WithWhere("symbol = ?", strings.ToUpper(param.Symbol)))
	}
	if param.SuccessOnly {
		opts = append(opts, utils.WithWhere("success = ?", true))
	}

	var runs []model.BacktestRun
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Omit("trades").
		Find(&runs).Error
	return runs, err
}

func (r *backtestRunRepository) DeleteOlderThan(ctx context.Context, date time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", date).Delete(&model.BacktestRun{})
	return result.RowsAffected, result.Error
}
