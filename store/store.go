// Package store persists completed backtest results on disk so runs can be
// compared and replayed after the process exits.
package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/quantave/backsim/engine"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const resultPrefix = "result:"

var (
	// ErrResultNotFound is returned when no stored result matches a run ID
	ErrResultNotFound = errors.New("result not found")

	errPathUnset  = errors.New("store path unset")
	errNilResult  = errors.New("result cannot be nil")
	errEmptyRunID = errors.New("run id cannot be empty")
)

// Store persists run results in a BadgerDB keyed by run ID
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Summary is the lightweight listing view of one stored result
type Summary struct {
	RunID     string          `json:"run-id"`
	Nickname  string          `json:"nickname"`
	Strategy  string          `json:"strategy"`
	StartTime time.Time       `json:"start-time"`
	EndTime   time.Time       `json:"end-time"`
	NetPnL    decimal.Decimal `json:"net-pnl"`
}

// New opens or creates a result store at path
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errPathUnset
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func key(runID string) []byte {
	return []byte(resultPrefix + runID)
}

// Save persists one completed run result, replacing any result already
// stored under the same run ID
func (s *Store) Save(result *engine.Result) error {
	if result == nil {
		return errNilResult
	}
	if result.RunID == "" {
		return errEmptyRunID
	}
	payload, err := result.ToJSON()
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(result.RunID), payload)
	})
	if err != nil {
		return fmt.Errorf("save result %v: %w", result.RunID, err)
	}
	s.logger.Info("result saved", zap.String("id", result.RunID))
	return nil
}

// Load returns the stored result for a run ID
func (s *Store) Load(runID string) (*engine.Result, error) {
	if runID == "" {
		return nil, errEmptyRunID
	}
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(runID))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			payload = append([]byte(nil), v...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrResultNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return engine.ResultFromJSON(payload)
}

// List returns a summary of every stored result ordered by run start time
func (s *Store) List() ([]Summary, error) {
	var summaries []Summary
	prefix := []byte(resultPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		r := txn.NewIterator(badger.DefaultIteratorOptions)
		defer r.Close()
		for r.Seek(prefix); r.ValidForPrefix(prefix); r.Next() {
			var result *engine.Result
			err := r.Item().Value(func(v []byte) error {
				var decodeErr error
				result, decodeErr = engine.ResultFromJSON(v)
				return decodeErr
			})
			if err != nil {
				return err
			}
			sum := Summary{
				RunID:     result.RunID,
				Nickname:  result.Nickname,
				Strategy:  result.Strategy,
				StartTime: result.StartTime,
				EndTime:   result.EndTime,
			}
			if result.Metrics != nil {
				sum.NetPnL = result.Metrics.NetPnL
			}
			summaries = append(summaries, sum)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.Before(summaries[j].StartTime)
	})
	return summaries, nil
}

// Delete removes a stored result
func (s *Store) Delete(runID string) error {
	if runID == "" {
		return errEmptyRunID
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(runID)); err != nil {
			return err
		}
		return txn.Delete(key(runID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %v", ErrResultNotFound, runID)
	}
	return err
}

// Close flushes and closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
