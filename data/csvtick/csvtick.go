// Package csvtick loads historical tick data from CSV files with the
// columns timestamp, pair, bids, asks and an optional funding rate. The
// timestamp is epoch milliseconds and the book side cells hold JSON
// [price, size] arrays with numeric or numeric-string members.
package csvtick

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/quantave/backsim/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	errNoUsableTicks = errors.New("no usable ticks decoded")
	errShortRow      = errors.New("row needs timestamp, pair, bids and asks columns")
)

// LoadData reads every usable tick from the file at path. A leading header
// row is detected and skipped, and malformed rows are logged and skipped
// rather than failing the load
func LoadData(path string, logger *zap.Logger) ([]data.Tick, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Error("could not close tick file", zap.Error(closeErr))
		}
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var ticks []data.Tick
	var skipped, rowIdx int
	for {
		row, readErr := reader.Read()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%v row %d could not be read %w", path, rowIdx, readErr)
		}
		rowIdx++
		if rowIdx == 1 && isHeader(row) {
			continue
		}
		t, parseErr := parseRow(row)
		if parseErr != nil {
			skipped++
			logger.Warn("skipping malformed tick",
				zap.String("file", filepath.Base(path)),
				zap.Int("row", rowIdx),
				zap.Error(parseErr))
			continue
		}
		ticks = append(ticks, *t)
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

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "timestamp")
}

func parseRow(row []string) (*data.Tick, error) {
	if len(row) < 4 {
		return nil, errShortRow
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	pair, err := currency.NewPairFromString(strings.TrimSpace(row[1]))
	if err != nil {
		return nil, err
	}

	tick := &data.Tick{
		Timestamp: time.UnixMilli(ms).UTC(),
		Pair:      pair.Upper(),
	}
	tick.OrderBook.Pair = tick.Pair
	tick.OrderBook.LastUpdated = tick.Timestamp

	if err = decodeLevelCell(row[2], &tick.OrderBook.Bids); err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}
	if err = decodeLevelCell(row[3], &tick.OrderBook.Asks); err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}
	if err = tick.OrderBook.Validate(); err != nil {
		return nil, err
	}

	if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
		rate, convErr := decimal.NewFromString(strings.TrimSpace(row[4]))
		if convErr != nil {
			return nil, fmt.Errorf("funding rate: %w", convErr)
		}
		tick.FundingRate = rate
	}
	return tick, nil
}

// decodeLevelCell parses one side's JSON array cell. An empty cell is an
// empty side
func decodeLevelCell(cell string, dst *[]orderbook.Level) error {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	return json.Unmarshal([]byte(cell), dst)
}
