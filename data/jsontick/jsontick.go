// Package jsontick loads historical tick data from JSON files. A file may
// hold one top-level array of tick objects or newline-delimited objects,
// each carrying an epoch millisecond timestamp, a pair and an order book
// whose sides are [price, size] arrays with numeric or numeric-string
// members.
package jsontick

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/order"
	"github.com/quantave/backsim/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	errEmptyFile     = errors.New("file contains no data")
	errNoUsableTicks = errors.New("no usable ticks decoded")
	errNotAnArray    = errors.New("expected a JSON array")
)

// LoadData reads every usable tick from the file at path. Malformed rows
// are logged and skipped rather than failing the load
func LoadData(path string, logger *zap.Logger) ([]data.Tick, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%v %w", path, errEmptyFile)
	}

	var ticks []data.Tick
	var skipped int
	appendTick := func(row []byte, idx int) {
		t, parseErr := parseTick(row)
		if parseErr != nil {
			skipped++
			logger.Warn("skipping malformed tick",
				zap.String("file", filepath.Base(path)),
				zap.Int("row", idx),
				zap.Error(parseErr))
			return
		}
		ticks = append(ticks, *t)
	}

	if raw[0] == '[' {
		var idx int
		_, err = jsonparser.ArrayEach(raw, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
			appendTick(value, idx)
			idx++
		})
		if err != nil {
			return nil, fmt.Errorf("%v could not be parsed %w", path, err)
		}
	} else {
		for idx, line := range bytes.Split(raw, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			appendTick(line, idx)
		}
	}

	if len(ticks) == 0 {
		return nil, fmt.Errorf("%v %w", path, errNoUsableTicks)
	}
	logger.Info("loaded tick data",
		zap.String("file", filepath.Base(path)),
		zap.Int("ticks", len(ticks)),
		zap.Int("skipped", skipped))
	return ticks, nil
}

func parseTick(row []byte) (*data.Tick, error) {
	ms, err := jsonparser.GetInt(row, "timestamp")
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	pairStr, err := jsonparser.GetString(row, "pair")
	if err != nil {
		return nil, fmt.Errorf("pair: %w", err)
	}
	pair, err := currency.NewPairFromString(pairStr)
	if err != nil {
		return nil, err
	}

	tick := &data.Tick{
		Timestamp: time.UnixMilli(ms).UTC(),
		Pair:      pair.Upper(),
	}
	tick.OrderBook.Pair = tick.Pair
	tick.OrderBook.LastUpdated = tick.Timestamp

	if err = decodeLevels(row, &tick.OrderBook.Bids, "orderBook", "bids"); err != nil {
		return nil, err
	}
	if err = decodeLevels(row, &tick.OrderBook.Asks, "orderBook", "asks"); err != nil {
		return nil, err
	}
	if err = tick.OrderBook.Validate(); err != nil {
		return nil, err
	}

	if raw, _, _, rateErr := jsonparser.Get(row, "fundingRate"); rateErr == nil {
		rate, convErr := decimal.NewFromString(string(raw))
		if convErr != nil {
			return nil, fmt.Errorf("fundingRate: %w", convErr)
		}
		tick.FundingRate = rate
	}

	if value, dataType, _, tradeErr := jsonparser.Get(row, "trades"); tradeErr == nil {
		if dataType != jsonparser.Array {
			return nil, fmt.Errorf("trades: %w", errNotAnArray)
		}
		tick.Trades, err = decodeTrades(value)
		if err != nil {
			return nil, err
		}
	}
	return tick, nil
}

// decodeLevels extracts one book side. A missing key is an empty side; a
// present but malformed value fails the row
func decodeLevels(row []byte, dst *[]orderbook.Level, keys ...string) error {
	value, dataType, _, err := jsonparser.Get(row, keys...)
	if err != nil {
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return nil
		}
		return fmt.Errorf("%v: %w", strings.Join(keys, "."), err)
	}
	if dataType != jsonparser.Array {
		return fmt.Errorf("%v: %w", strings.Join(keys, "."), errNotAnArray)
	}
	if err = json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("%v: %w", strings.Join(keys, "."), err)
	}
	return nil
}

type wireTrade struct {
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Side      string          `json:"side"`
	Timestamp int64           `json:"timestamp"`
}

func decodeTrades(value []byte) ([]data.PublicTrade, error) {
	var rows []wireTrade
	if err := json.Unmarshal(value, &rows); err != nil {
		return nil, fmt.Errorf("trades: %w", err)
	}
	out := make([]data.PublicTrade, 0, len(rows))
	for i := range rows {
		side, err := order.StringToOrderSide(rows[i].Side)
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		out = append(out, data.PublicTrade{
			Price:     rows[i].Price,
			Amount:    rows[i].Amount,
			Side:      side,
			Timestamp: time.UnixMilli(rows[i].Timestamp).UTC(),
		})
	}
	return out, nil
}
