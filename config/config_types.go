package config

import (
	"errors"
	"time"
)

// EnvPrefix is prepended to environment variables that override file
// settings, eg BACKSIM_NICKNAME.
const EnvPrefix = "BACKSIM"

// DefaultTickInterval is applied when a run does not set its own
// simulated tick interval.
const DefaultTickInterval = time.Minute

var (
	errConfigFileUnset      = errors.New("config file path unset")
	errStrategyUnset        = errors.New("strategy name unset")
	errNoDataSource         = errors.New("no data source set")
	errMultipleDataSources  = errors.New("only one data source may be set")
	errDataPathUnset        = errors.New("data file path unset")
	errAddressUnset         = errors.New("clickhouse address unset")
	errDatabaseUnset        = errors.New("clickhouse database unset")
	errTableUnset           = errors.New("clickhouse table unset")
	errNoPairs              = errors.New("no currency pairs set")
	errNoInitialBalances    = errors.New("no initial balances set")
	errNegativeBalance      = errors.New("initial balance cannot be negative")
	errNegativeFee          = errors.New("fee rate cannot be negative")
	errInvalidSlippage      = errors.New("slippage rate must be greater than or equal to 0 and less than 1")
	errStartEndUnset        = errors.New("start and end dates must be set")
	errBadDate              = errors.New("start date must be before end date")
	errNegativeTickInterval = errors.New("tick interval cannot be negative")
	errQuoteUnset           = errors.New("quote currency unset")
)

// Config defines a fully loaded backtest run ready for validation
type Config struct {
	Nickname         string           `json:"nickname"`
	Verbose          bool             `json:"verbose"`
	StrategySettings StrategySettings `json:"strategy-settings"`
	DataSettings     DataSettings     `json:"data-settings"`
	ExchangeSettings ExchangeSettings `json:"exchange-settings"`
	RunSettings      RunSettings      `json:"run-settings"`
	Report           Report           `json:"report"`
	Store            Store            `json:"store"`
}

// StrategySettings names the strategy to run along with any custom
// settings it accepts
type StrategySettings struct {
	Name           string         `json:"name"`
	CustomSettings map[string]any `json:"custom-settings,omitempty"`
}

// DataSettings selects where tick data is sourced from. Exactly one
// source must be set
type DataSettings struct {
	CSVData        *CSVData        `json:"csv-data,omitempty"`
	JSONData       *JSONData       `json:"json-data,omitempty"`
	ClickHouseData *ClickHouseData `json:"clickhouse-data,omitempty"`
}

// CSVData holds the path to a CSV tick file
type CSVData struct {
	FullPath string `json:"full-path"`
}

// JSONData holds the path to a JSON tick file
type JSONData struct {
	FullPath string `json:"full-path"`
}

// ClickHouseData holds connection details for loading ticks from a
// ClickHouse table
type ClickHouseData struct {
	Address  string   `json:"address"`
	Database string   `json:"database"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Table    string   `json:"table"`
	Pairs    []string `json:"pairs"`
}

// ExchangeSettings configures the simulated venue. Balances and rates
// are converted to decimals when the exchange is built
type ExchangeSettings struct {
	InitialBalances map[string]float64 `json:"initial-balances"`
	MakerFee        float64            `json:"maker-fee"`
	TakerFee        float64            `json:"taker-fee"`
	Slippage        float64            `json:"slippage"`
}

// RunSettings bounds the simulation window
type RunSettings struct {
	StartDate     time.Time     `json:"start-date"`
	EndDate       time.Time     `json:"end-date"`
	TickInterval  time.Duration `json:"tick-interval"`
	QuoteCurrency string        `json:"quote-currency"`
}

// Report configures post-run output rendering
type Report struct {
	GenerateReport bool   `json:"generate-report"`
	OutputPath     string `json:"output-path"`
	DetailedTrades bool   `json:"detailed-trades"`
}

// Store configures persistence of completed run results
type Store struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
