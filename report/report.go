// Package report renders completed run results for people: console tables
// of headline metrics, balances and realized trades, plus an optional JSON
// artifact on disk.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/quantave/backsim/config"
	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/engine"
	"go.uber.org/zap"
)

var errNilResult = errors.New("result cannot be nil")

// Writer renders run results to one output stream
type Writer struct {
	out    io.Writer
	logger *zap.Logger
}

// New returns a report writer. A nil out defaults to stdout
func New(out io.Writer, logger *zap.Logger) *Writer {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{out: out, logger: logger}
}

// Generate renders the console report per the report settings and writes
// the JSON artifact when an output path is configured
func (w *Writer) Generate(result *engine.Result, settings config.Report) error {
	if err := w.PrintSummary(result); err != nil {
		return err
	}
	if settings.DetailedTrades {
		if err := w.PrintTrades(result); err != nil {
			return err
		}
	}
	if settings.OutputPath != "" {
		path, err := w.WriteJSON(result, settings.OutputPath)
		if err != nil {
			return err
		}
		w.logger.Info("report artifact written", zap.String("path", path))
	}
	return nil
}

// PrintSummary renders the run header, headline metrics and balances
func (w *Writer) PrintSummary(result *engine.Result) error {
	if result == nil {
		return errNilResult
	}
	fmt.Fprintf(w.out, "\nRun      %s (%s)\n", result.Nickname, result.RunID)
	fmt.Fprintf(w.out, "Strategy %s\n", result.Strategy)
	fmt.Fprintf(w.out, "Window   %s to %s every %s\n",
		result.StartTime.Format(time.RFC3339),
		result.EndTime.Format(time.RFC3339),
		result.TickInterval)
	fmt.Fprintf(w.out, "Activity %d ticks processed, %d orders placed, %d fills\n\n",
		result.ProcessedTicks,
		result.ExchangeStats.OrdersPlaced,
		result.ExchangeStats.TotalFills)

	m := result.Metrics
	if m == nil {
		return nil
	}

	quote := string(result.Quote)
	tbl := tablewriter.NewWriter(w.out)
	tbl.Header("Metric", "Value")
	tbl.Append("Initial Value", m.InitialValue.StringFixed(2)+" "+quote)
	tbl.Append("Final Value", m.FinalValue.StringFixed(2)+" "+quote)
	tbl.Append("Return", m.ReturnPercent.StringFixed(2)+"%")
	tbl.Append("Annualized Return", m.AnnualizedReturn.String())
	tbl.Append("Total PnL", m.TotalPnL.StringFixed(2)+" "+quote)
	tbl.Append("Total Fees", m.TotalFees.StringFixed(2)+" "+quote)
	tbl.Append("Net PnL", m.NetPnL.StringFixed(2)+" "+quote)
	tbl.Append("Trades", fmt.Sprintf("%d (%d won, %d lost, %d flat)",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.BreakEvenTrades))
	tbl.Append("Win Rate", m.WinRate.StringFixed(2)+"%")
	tbl.Append("Profit Factor", m.ProfitFactor.String())
	tbl.Append("Max Drawdown", m.MaxDrawdown.Percent.StringFixed(2)+"%")
	tbl.Append("Sharpe Ratio", m.SharpeRatio.String())
	tbl.Append("Sortino Ratio", m.SortinoRatio.String())
	tbl.Append("Buy & Hold Return", m.BuyAndHoldReturn.StringFixed(2)+"%")
	tbl.Append("Excess Return", m.ExcessReturn.StringFixed(2)+"%")
	tbl.Render()

	w.printBalances(result)
	return nil
}

// printBalances renders the union of initial and final holdings
func (w *Writer) printBalances(result *engine.Result) {
	codes := make(map[currency.Code]struct{}, len(result.InitialBalances))
	for code := range result.InitialBalances {
		codes[code] = struct{}{}
	}
	for code := range result.FinalBalances {
		codes[code] = struct{}{}
	}
	if len(codes) == 0 {
		return
	}
	sorted := make([]currency.Code, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	fmt.Fprintln(w.out)
	tbl := tablewriter.NewWriter(w.out)
	tbl.Header("Currency", "Initial", "Final")
	for _, code := range sorted {
		tbl.Append(string(code),
			result.InitialBalances[code].String(),
			result.FinalBalances[code].String())
	}
	tbl.Render()
}

// PrintTrades renders every realized round trip of the run
func (w *Writer) PrintTrades(result *engine.Result) error {
	if result == nil {
		return errNilResult
	}
	if result.Metrics == nil || len(result.Metrics.Trades) == 0 {
		fmt.Fprintln(w.out, "\nNo completed trades.")
		return nil
	}
	fmt.Fprintln(w.out)
	tbl := tablewriter.NewWriter(w.out)
	tbl.Header("Closed", "Pair", "Amount", "Entry", "Exit", "PnL", "Fees", "Net")
	for i := range result.Metrics.Trades {
		trade := &result.Metrics.Trades[i]
		tbl.Append(
			trade.Timestamp.Format(time.RFC3339),
			trade.Pair.String(),
			trade.Amount.String(),
			trade.EntryPrice.String(),
			trade.ExitPrice.String(),
			trade.PnL.StringFixed(2),
			trade.Fees.StringFixed(2),
			trade.NetPnL().StringFixed(2),
		)
	}
	tbl.Render()
	return nil
}

// WriteJSON writes the full result to dir as <nickname>-<run id>.json and
// returns the path
func (w *Writer) WriteJSON(result *engine.Result, dir string) (string, error) {
	if result == nil {
		return "", errNilResult
	}
	payload, err := result.ToJSON()
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	path := filepath.Join(dir, fileName(result))
	if err = os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// fileName derives a filesystem-safe artifact name from the run identity
func fileName(result *engine.Result) string {
	nickname := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, result.Nickname)
	if nickname == "" {
		return result.RunID + ".json"
	}
	return nickname + "-" + result.RunID + ".json"
}
