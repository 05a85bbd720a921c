package report

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantave/backsim/config"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/engine"
	"github.com/quantave/backsim/statistics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *engine.Result {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	return &engine.Result{
		RunID:        "11111111-2222-3333-4444-555555555555",
		Nickname:     "demo run",
		Strategy:     "rsi",
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		TickInterval: time.Minute,
		Quote:        currency.USDT,
		InitialBalances: map[currency.Code]decimal.Decimal{
			currency.USDT: decimal.NewFromInt(10000),
		},
		FinalBalances: map[currency.Code]decimal.Decimal{
			currency.USDT: decimal.NewFromInt(10098),
			currency.BTC:  decimal.Zero,
		},
		Metrics: &statistics.Metrics{
			TotalTrades:   1,
			WinningTrades: 1,
			WinRate:       decimal.NewFromInt(100),
			TotalPnL:      decimal.NewFromInt(100),
			TotalFees:     decimal.NewFromInt(2),
			NetPnL:        decimal.NewFromInt(98),
			InitialValue:  decimal.NewFromInt(10000),
			FinalValue:    decimal.NewFromInt(10098),
			ReturnPercent: decimal.NewFromFloat(0.98),
			SharpeRatio:   statistics.Ratio(1.2345),
			SortinoRatio:  statistics.Ratio(math.Inf(1)),
			ProfitFactor:  statistics.Ratio(math.Inf(1)),
			Trades: []statistics.Trade{{
				Pair:       currency.NewPairWithDelimiter("BTC", "USDT", "-"),
				EntryPrice: decimal.NewFromInt(100),
				ExitPrice:  decimal.NewFromInt(200),
				Amount:     decimal.NewFromInt(1),
				PnL:        decimal.NewFromInt(100),
				Fees:       decimal.NewFromInt(2),
				Timestamp:  start.Add(30 * time.Minute),
			}},
		},
		ProcessedTicks: 60,
	}
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()
	w := New(nil, nil)
	if err := w.PrintSummary(nil); !errors.Is(err, errNilResult) {
		t.Errorf("received: '%v' but expected: '%v'", err, errNilResult)
	}

	var buf bytes.Buffer
	w = New(&buf, nil)
	require.NoError(t, w.PrintSummary(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "demo run")
	assert.Contains(t, out, "rsi")
	assert.Contains(t, out, "1.2345")
	assert.Contains(t, out, "+Inf")
	assert.Contains(t, out, "10000")
	assert.Contains(t, out, "USDT")
	assert.Contains(t, out, "BTC")
}

func TestPrintTrades(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := New(&buf, nil)

	empty := sampleResult()
	empty.Metrics.Trades = nil
	require.NoError(t, w.PrintTrades(empty))
	assert.Contains(t, buf.String(), "No completed trades.")

	buf.Reset()
	require.NoError(t, w.PrintTrades(sampleResult()))
	out := buf.String()
	assert.Contains(t, out, "BTC-USDT")
	assert.Contains(t, out, "200")
	assert.Contains(t, out, "98.00")
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	w := New(nil, nil)
	dir := t.TempDir()

	_, err := w.WriteJSON(nil, dir)
	if !errors.Is(err, errNilResult) {
		t.Errorf("received: '%v' but expected: '%v'", err, errNilResult)
	}

	result := sampleResult()
	path, err := w.WriteJSON(result, filepath.Join(dir, "reports"))
	require.NoError(t, err)
	assert.Equal(t, "demo-run-"+result.RunID+".json", filepath.Base(path))

	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, err := engine.ResultFromJSON(payload)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, decoded.RunID)
	if !decoded.Metrics.NetPnL.Equal(decimal.NewFromInt(98)) {
		t.Errorf("received: '%v' but expected: '%v'", decoded.Metrics.NetPnL, 98)
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := New(&buf, nil)
	dir := t.TempDir()

	require.NoError(t, w.Generate(sampleResult(), config.Report{
		GenerateReport: true,
		OutputPath:     dir,
		DetailedTrades: true,
	}))

	out := buf.String()
	assert.Contains(t, out, "Net PnL")
	assert.Contains(t, out, "BTC-USDT")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileName(t *testing.T) {
	t.Parallel()
	result := sampleResult()
	result.Nickname = "my run! 2021/01"
	assert.Equal(t, "my-run--2021-01-"+result.RunID+".json", fileName(result))

	result.Nickname = ""
	assert.Equal(t, result.RunID+".json", fileName(result))
}
