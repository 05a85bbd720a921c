package engine

import (
	"context"
	"fmt"

	"github.com/quantave/backsim/clock"
	"github.com/quantave/backsim/config"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/data/clickhousetick"
	"github.com/quantave/backsim/data/csvtick"
	"github.com/quantave/backsim/data/jsontick"
	"github.com/quantave/backsim/exchange"
	"github.com/quantave/backsim/strategies"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NewFromConfig assembles a ready-to-run backtest from a config, loading
// tick data from whichever source the config selects. The returned run owns
// a fresh simulated clock and venue
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*BackTest, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errNilConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	strategy, err := strategies.LoadStrategyByName(cfg.StrategySettings.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if len(cfg.StrategySettings.CustomSettings) > 0 {
		if err = strategy.SetCustomSettings(cfg.StrategySettings.CustomSettings); err != nil {
			return nil, fmt.Errorf("%w: strategy %v %w", ErrConfiguration, strategy.Name(), err)
		}
	}

	provider := data.NewProvider(logger)
	if err = loadTickData(ctx, cfg, provider, logger); err != nil {
		return nil, err
	}
	var inWindow bool
	for _, pair := range provider.Pairs() {
		if len(provider.Range(pair, cfg.RunSettings.StartDate, cfg.RunSettings.EndDate)) > 0 {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errNoTicksInWindow)
	}

	exch, err := exchange.New(exchangeSettings(cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return New(Settings{
		Config:       cfg,
		Clock:        clock.NewSimulated(cfg.RunSettings.StartDate, logger),
		Provider:     provider,
		Exchange:     exch,
		Strategy:     strategy,
		Start:        cfg.RunSettings.StartDate,
		End:          cfg.RunSettings.EndDate,
		TickInterval: cfg.RunSettings.TickInterval,
		Quote:        currency.NewCode(cfg.RunSettings.QuoteCurrency),
		Logger:       logger,
	})
}

// loadTickData fills the provider from the config's selected source
func loadTickData(ctx context.Context, cfg *config.Config, provider *data.Provider, logger *zap.Logger) error {
	switch {
	case cfg.DataSettings.CSVData != nil:
		ticks, err := csvtick.LoadData(cfg.DataSettings.CSVData.FullPath, logger)
		if err != nil {
			return fmt.Errorf("csv data: %w", err)
		}
		return provider.LoadAll(ticks)
	case cfg.DataSettings.JSONData != nil:
		ticks, err := jsontick.LoadData(cfg.DataSettings.JSONData.FullPath, logger)
		if err != nil {
			return fmt.Errorf("json data: %w", err)
		}
		return provider.LoadAll(ticks)
	case cfg.DataSettings.ClickHouseData != nil:
		return loadClickHouseData(ctx, cfg.DataSettings.ClickHouseData, cfg.RunSettings, provider, logger)
	default:
		return fmt.Errorf("%w: %w", ErrConfiguration, errUnknownDataSource)
	}
}

// loadClickHouseData pulls each configured pair's window from the tick
// table. Pairs with no rows in the window are skipped rather than failing
// the whole run
func loadClickHouseData(ctx context.Context, ch *config.ClickHouseData, run config.RunSettings, provider *data.Provider, logger *zap.Logger) error {
	src, err := clickhousetick.New(ctx, clickhousetick.Settings{
		Address:  ch.Address,
		Database: ch.Database,
		Username: ch.Username,
		Password: ch.Password,
		Table:    ch.Table,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("clickhouse data: %w", err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			logger.Error("could not close clickhouse connection", zap.Error(closeErr))
		}
	}()
	for _, symbol := range ch.Pairs {
		pair, err := currency.NewPairFromString(symbol)
		if err != nil {
			return err
		}
		ticks, err := src.Load(ctx, pair, run.StartDate, run.EndDate)
		if err != nil {
			return err
		}
		if len(ticks) == 0 {
			logger.Warn("no ticks in run window",
				zap.String("pair", pair.String()))
			continue
		}
		if err = provider.Load(pair, ticks); err != nil {
			return err
		}
	}
	return nil
}

// exchangeSettings converts the config's float rates and balances to the
// venue's decimal types
func exchangeSettings(cfg *config.Config, logger *zap.Logger) exchange.Settings {
	balances := make(map[currency.Code]decimal.Decimal, len(cfg.ExchangeSettings.InitialBalances))
	for code, amount := range cfg.ExchangeSettings.InitialBalances {
		balances[currency.NewCode(code)] = decimal.NewFromFloat(amount)
	}
	return exchange.Settings{
		InitialBalances: balances,
		MakerFee:        decimal.NewFromFloat(cfg.ExchangeSettings.MakerFee),
		TakerFee:        decimal.NewFromFloat(cfg.ExchangeSettings.TakerFee),
		Slippage:        decimal.NewFromFloat(cfg.ExchangeSettings.Slippage),
		Logger:          logger,
	}
}
