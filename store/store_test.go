package store

import (
	"errors"
	"testing"
	"time"

	"github.com/quantave/backsim/currency"
	"github.com/quantave/backsim/engine"
	"github.com/quantave/backsim/statistics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("received: '%v' but expected: '%v'", err, nil)
		}
	})
	return s
}

func sampleResult(runID string, start time.Time) *engine.Result {
	return &engine.Result{
		RunID:        runID,
		Nickname:     "nickname-" + runID,
		Strategy:     "dollarcostaverage",
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		TickInterval: time.Minute,
		Quote:        currency.USDT,
		Metrics: &statistics.Metrics{
			NetPnL: decimal.NewFromInt(42),
		},
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	_, err := New("", nil)
	if !errors.Is(err, errPathUnset) {
		t.Errorf("received: '%v' but expected: '%v'", err, errPathUnset)
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Save(nil); !errors.Is(err, errNilResult) {
		t.Errorf("received: '%v' but expected: '%v'", err, errNilResult)
	}
	if err := s.Save(&engine.Result{}); !errors.Is(err, errEmptyRunID) {
		t.Errorf("received: '%v' but expected: '%v'", err, errEmptyRunID)
	}
	if _, err := s.Load(""); !errors.Is(err, errEmptyRunID) {
		t.Errorf("received: '%v' but expected: '%v'", err, errEmptyRunID)
	}
	if _, err := s.Load("unknown"); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("received: '%v' but expected: '%v'", err, ErrResultNotFound)
	}

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(sampleResult("run-1", start)))

	loaded, err := s.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "nickname-run-1", loaded.Nickname)
	assert.True(t, loaded.StartTime.Equal(start))
	require.NotNil(t, loaded.Metrics)
	if !loaded.Metrics.NetPnL.Equal(decimal.NewFromInt(42)) {
		t.Errorf("received: '%v' but expected: '%v'", loaded.Metrics.NetPnL, 42)
	}

	// saving again under the same ID replaces the stored result
	updated := sampleResult("run-1", start)
	updated.Nickname = "replacement"
	require.NoError(t, s.Save(updated))
	loaded, err = s.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, "replacement", loaded.Nickname)
}

func TestList(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	summaries, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, summaries)

	later := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(sampleResult("run-b", later)))
	require.NoError(t, s.Save(sampleResult("run-a", earlier)))

	summaries, err = s.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "run-a", summaries[0].RunID)
	assert.Equal(t, "run-b", summaries[1].RunID)
	if !summaries[0].NetPnL.Equal(decimal.NewFromInt(42)) {
		t.Errorf("received: '%v' but expected: '%v'", summaries[0].NetPnL, 42)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Delete(""); !errors.Is(err, errEmptyRunID) {
		t.Errorf("received: '%v' but expected: '%v'", err, errEmptyRunID)
	}
	if err := s.Delete("unknown"); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("received: '%v' but expected: '%v'", err, ErrResultNotFound)
	}

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(sampleResult("run-1", start)))
	require.NoError(t, s.Delete("run-1"))

	if _, err := s.Load("run-1"); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("received: '%v' but expected: '%v'", err, ErrResultNotFound)
	}
}
