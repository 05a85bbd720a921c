package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/strategies"
	"github.com/spf13/viper"
)

// ReadConfigFromFile loads a run configuration from a YAML or JSON
// file, applies BACKSIM_* environment overrides and validates it. The
// format is chosen by the file extension
func ReadConfigFromFile(path string) (*Config, error) {
	if path == "" {
		return nil, errConfigFileUnset
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%v config file issue %w", path, err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%v config file could not be read %w", path, err)
	}
	return unmarshalConfig(v)
}

// LoadConfig unmarshals raw JSON data into a validated run
// configuration
func LoadConfig(data []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("config data could not be read %w", err)
	}
	return unmarshalConfig(v)
}

func unmarshalConfig(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c, decoderOptions); err != nil {
		return nil, fmt.Errorf("config could not be parsed %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// decoderOptions maps config keys by their json tags so file, wire and
// struct representations stay identical, and parses RFC3339 timestamps
// and duration strings such as "1m"
func decoderOptions(dc *mapstructure.DecoderConfig) {
	dc.TagName = "json"
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// Validate checks all sections of the configuration and normalises
// defaults in place
func (c *Config) Validate() error {
	if err := c.validateStrategySettings(); err != nil {
		return err
	}
	if err := c.validateDataSettings(); err != nil {
		return err
	}
	if err := c.validateExchangeSettings(); err != nil {
		return err
	}
	return c.validateRunSettings()
}

func (c *Config) validateStrategySettings() error {
	if c.StrategySettings.Name == "" {
		return errStrategyUnset
	}
	strat, err := strategies.LoadStrategyByName(c.StrategySettings.Name)
	if err != nil {
		return err
	}
	// YAML decodes bare numbers as ints, strategies expect floats
	for k, v := range c.StrategySettings.CustomSettings {
		switch n := v.(type) {
		case int:
			c.StrategySettings.CustomSettings[k] = float64(n)
		case int64:
			c.StrategySettings.CustomSettings[k] = float64(n)
		case float32:
			c.StrategySettings.CustomSettings[k] = float64(n)
		}
	}
	if len(c.StrategySettings.CustomSettings) > 0 {
		if err = strat.SetCustomSettings(c.StrategySettings.CustomSettings); err != nil {
			return fmt.Errorf("strategy %v %w", strat.Name(), err)
		}
	}
	return nil
}

func (c *Config) validateDataSettings() error {
	var sources int
	if csv := c.DataSettings.CSVData; csv != nil {
		sources++
		if csv.FullPath == "" {
			return fmt.Errorf("csv %w", errDataPathUnset)
		}
	}
	if j := c.DataSettings.JSONData; j != nil {
		sources++
		if j.FullPath == "" {
			return fmt.Errorf("json %w", errDataPathUnset)
		}
	}
	if ch := c.DataSettings.ClickHouseData; ch != nil {
		sources++
		switch {
		case ch.Address == "":
			return errAddressUnset
		case ch.Database == "":
			return errDatabaseUnset
		case ch.Table == "":
			return errTableUnset
		case len(ch.Pairs) == 0:
			return fmt.Errorf("clickhouse %w", errNoPairs)
		}
		for i := range ch.Pairs {
			if _, err := currency.NewPairFromString(ch.Pairs[i]); err != nil {
				return fmt.Errorf("clickhouse pair %q %w", ch.Pairs[i], err)
			}
		}
	}
	switch sources {
	case 0:
		return errNoDataSource
	case 1:
		return nil
	default:
		return errMultipleDataSources
	}
}

func (c *Config) validateExchangeSettings() error {
	if len(c.ExchangeSettings.InitialBalances) == 0 {
		return errNoInitialBalances
	}
	for code, amount := range c.ExchangeSettings.InitialBalances {
		if amount < 0 {
			return fmt.Errorf("%v %w", code, errNegativeBalance)
		}
	}
	if c.ExchangeSettings.MakerFee < 0 || c.ExchangeSettings.TakerFee < 0 {
		return errNegativeFee
	}
	if c.ExchangeSettings.Slippage < 0 || c.ExchangeSettings.Slippage >= 1 {
		return errInvalidSlippage
	}
	return nil
}

func (c *Config) validateRunSettings() error {
	if c.RunSettings.StartDate.IsZero() || c.RunSettings.EndDate.IsZero() {
		return errStartEndUnset
	}
	if !c.RunSettings.EndDate.After(c.RunSettings.StartDate) {
		return errBadDate
	}
	if c.RunSettings.TickInterval < 0 {
		return errNegativeTickInterval
	}
	if c.RunSettings.TickInterval == 0 {
		c.RunSettings.TickInterval = DefaultTickInterval
	}
	if c.RunSettings.QuoteCurrency == "" {
		return errQuoteUnset
	}
	return nil
}
