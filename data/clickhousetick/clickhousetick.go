// Package clickhousetick loads and stores bulk historical tick data in a
// ClickHouse table. Book sides are kept as the same JSON [price, size]
// arrays the file loaders use, so rows stay portable between sources.
package clickhousetick

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/data"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	errAddressUnset  = errors.New("clickhouse address unset")
	errDatabaseUnset = errors.New("clickhouse database unset")
	errTableUnset    = errors.New("clickhouse table unset")
	errNoTicks       = errors.New("no ticks to save")
)

// Settings holds connection details for a tick table
type Settings struct {
	Address  string
	Database string
	Username string
	Password string
	Table    string
	Logger   *zap.Logger
}

// Source reads and writes ticks against one ClickHouse table
type Source struct {
	conn   clickhouse.Conn
	db     string
	table  string
	logger *zap.Logger
}

// New opens and pings a ClickHouse connection
func New(ctx context.Context, s Settings) (*Source, error) {
	switch {
	case s.Address == "":
		return nil, errAddressUnset
	case s.Database == "":
		return nil, errDatabaseUnset
	case s.Table == "":
		return nil, errTableUnset
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{s.Address},
		Auth: clickhouse.Auth{
			Database: s.Database,
			Username: s.Username,
			Password: s.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err = conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Source{
		conn:   conn,
		db:     s.Database,
		table:  s.Table,
		logger: s.Logger,
	}, nil
}

// EnsureSchema creates the tick table when it does not exist
func (s *Source) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, s.schemaDDL()); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Load returns every tick for the pair inside the window in timestamp
// order. Rows that cannot be decoded are logged and skipped
func (s *Source) Load(ctx context.Context, pair currency.Pair, start, end time.Time) ([]data.Tick, error) {
	rows, err := s.conn.Query(ctx, s.selectQuery(),
		pair.Upper().String(), uint64(start.UnixMilli()), uint64(end.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []data.Tick
	var skipped int
	for rows.Next() {
		var (
			symbol     string
			tsMs       uint64
			bids, asks string
			funding    float64
		)
		if err = rows.Scan(&symbol, &tsMs, &bids, &asks, &funding); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		t, convErr := rowToTick(symbol, tsMs, bids, asks, funding)
		if convErr != nil {
			skipped++
			s.logger.Warn("skipping malformed tick row",
				zap.String("pair", symbol),
				zap.Uint64("timestamp-ms", tsMs),
				zap.Error(convErr))
			continue
		}
		ticks = append(ticks, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}
	s.logger.Info("loaded tick data",
		zap.String("pair", pair.String()),
		zap.Int("ticks", len(ticks)),
		zap.Int("skipped", skipped))
	return ticks, nil
}

// Save appends ticks to the table in one batch
func (s *Source) Save(ctx context.Context, ticks []data.Tick) error {
	if len(ticks) == 0 {
		return errNoTicks
	}
	batch, err := s.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s.%s", s.db, s.table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for i := range ticks {
		bids, marshalErr := json.Marshal(ticks[i].OrderBook.Bids)
		if marshalErr != nil {
			return marshalErr
		}
		asks, marshalErr := json.Marshal(ticks[i].OrderBook.Asks)
		if marshalErr != nil {
			return marshalErr
		}
		if err = batch.Append(
			ticks[i].Pair.Upper().String(),
			uint64(ticks[i].Timestamp.UnixMilli()),
			string(bids),
			string(asks),
			ticks[i].FundingRate.InexactFloat64(),
		); err != nil {
			return fmt.Errorf("append tick %d: %w", i, err)
		}
	}
	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	s.logger.Info("saved tick data", zap.Int("ticks", len(ticks)))
	return nil
}

// Close releases the connection
func (s *Source) Close() error {
	return s.conn.Close()
}

func (s *Source) schemaDDL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	pair String,
	ts_ms UInt64,
	bids String,
	asks String,
	funding_rate Float64
) ENGINE = MergeTree ORDER BY (pair, ts_ms)`, s.db, s.table)
}

func (s *Source) selectQuery() string {
	return fmt.Sprintf(`SELECT pair, ts_ms, bids, asks, funding_rate
FROM %s.%s
WHERE pair = ? AND ts_ms >= ? AND ts_ms <= ?
ORDER BY ts_ms`, s.db, s.table)
}

// rowToTick converts one stored row back into a tick
func rowToTick(symbol string, tsMs uint64, bids, asks string, funding float64) (*data.Tick, error) {
	pair, err := currency.NewPairFromString(symbol)
	if err != nil {
		return nil, err
	}
	tick := &data.Tick{
		Timestamp:   time.UnixMilli(int64(tsMs)).UTC(),
		Pair:        pair.Upper(),
		FundingRate: decimal.NewFromFloat(funding),
	}
	tick.OrderBook.Pair = tick.Pair
	tick.OrderBook.LastUpdated = tick.Timestamp

	if bids != "" {
		if err = json.Unmarshal([]byte(bids), &tick.OrderBook.Bids); err != nil {
			return nil, fmt.Errorf("bids: %w", err)
		}
	}
	if asks != "" {
		if err = json.Unmarshal([]byte(asks), &tick.OrderBook.Asks); err != nil {
			return nil, fmt.Errorf("asks: %w", err)
		}
	}
	if err = tick.OrderBook.Validate(); err != nil {
		return nil, err
	}
	return tick, nil
}
