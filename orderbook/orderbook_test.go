package orderbook

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Bids: []Level{
			{Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(10)},
			{Price: decimal.NewFromFloat(99.5), Amount: decimal.NewFromInt(15)},
		},
		Asks: []Level{
			{Price: decimal.NewFromFloat(100.5), Amount: decimal.NewFromInt(10)},
			{Price: decimal.NewFromInt(101), Amount: decimal.NewFromInt(15)},
		},
	}
}

func TestLevelUnmarshalJSON(t *testing.T) {
	t.Parallel()
	var l Level
	err := json.Unmarshal([]byte(`[100.5, 10]`), &l)
	if err != nil {
		t.Fatalf("received: '%v' but expected: '%v'", err, nil)
	}
	if !l.Price.Equal(decimal.NewFromFloat(100.5)) ||
		!l.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("received: '%v' but expected: '%v'", l, "100.5@10")
	}

	err = json.Unmarshal([]byte(`["99.5", "15"]`), &l)
	if err != nil {
		t.Fatalf("received: '%v' but expected: '%v'", err, nil)
	}
	if !l.Price.Equal(decimal.NewFromFloat(99.5)) ||
		!l.Amount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("received: '%v' but expected: '%v'", l, "99.5@15")
	}

	err = json.Unmarshal([]byte(`[100.5]`), &l)
	if !errors.Is(err, errLevelMalformed) {
		t.Errorf("received: '%v' but expected: '%v'", err, errLevelMalformed)
	}

	err = json.Unmarshal([]byte(`"not a level"`), &l)
	if !errors.Is(err, errLevelMalformed) {
		t.Errorf("received: '%v' but expected: '%v'", err, errLevelMalformed)
	}
}

func TestLevelMarshalRoundTrip(t *testing.T) {
	t.Parallel()
	s := testSnapshot()
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("received: '%v' but expected: '%v'", err, nil)
	}
	var decoded Snapshot
	err = json.Unmarshal(out, &decoded)
	if err != nil {
		t.Fatalf("received: '%v' but expected: '%v'", err, nil)
	}
	if len(decoded.Bids) != 2 || len(decoded.Asks) != 2 {
		t.Fatalf("received: '%v' bids '%v' asks but expected 2 and 2",
			len(decoded.Bids), len(decoded.Asks))
	}
	if !decoded.Bids[1].Price.Equal(decimal.NewFromFloat(99.5)) {
		t.Errorf("received: '%v' but expected: '%v'",
			decoded.Bids[1].Price, "99.5")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	s := testSnapshot()
	if err := s.Validate(); err != nil {
		t.Fatalf("received: '%v' but expected: '%v'", err, nil)
	}

	s = testSnapshot()
	s.Bids[0].Price = decimal.Zero
	if err := s.Validate(); !errors.Is(err, errPriceNotSet) {
		t.Errorf("received: '%v' but expected: '%v'", err, errPriceNotSet)
	}

	s = testSnapshot()
	s.Asks[1].Amount = decimal.NewFromInt(-1)
	if err := s.Validate(); !errors.Is(err, errAmountInvalid) {
		t.Errorf("received: '%v' but expected: '%v'", err, errAmountInvalid)
	}

	s = testSnapshot()
	s.Bids[0], s.Bids[1] = s.Bids[1], s.Bids[0]
	if err := s.Validate(); !errors.Is(err, errPriceOutOfOrder) {
		t.Errorf("received: '%v' but expected: '%v'", err, errPriceOutOfOrder)
	}

	s = testSnapshot()
	s.Asks[0], s.Asks[1] = s.Asks[1], s.Asks[0]
	if err := s.Validate(); !errors.Is(err, errPriceOutOfOrder) {
		t.Errorf("received: '%v' but expected: '%v'", err, errPriceOutOfOrder)
	}
}

func TestBestAndMid(t *testing.T) {
	t.Parallel()
	s := testSnapshot()
	bid, ok := s.BestBid()
	if !ok || !bid.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("received: '%v' but expected: '%v'", bid.Price, 100)
	}
	ask, ok := s.BestAsk()
	if !ok || !ask.Price.Equal(decimal.NewFromFloat(100.5)) {
		t.Errorf("received: '%v' but expected: '%v'", ask.Price, 100.5)
	}
	mid, ok := s.MidPrice()
	if !ok || !mid.Equal(decimal.NewFromFloat(100.25)) {
		t.Errorf("received: '%v' but expected: '%v'", mid, 100.25)
	}

	empty := &Snapshot{}
	if _, ok := empty.BestBid(); ok {
		t.Error("expected no best bid on empty book")
	}
	if _, ok := empty.MidPrice(); ok {
		t.Error("expected no mid price on empty book")
	}
}

func TestTotalAmounts(t *testing.T) {
	t.Parallel()
	s := testSnapshot()
	if !s.TotalBidAmount().Equal(decimal.NewFromInt(25)) {
		t.Errorf("received: '%v' but expected: '%v'", s.TotalBidAmount(), 25)
	}
	if !s.TotalAskAmount().Equal(decimal.NewFromInt(25)) {
		t.Errorf("received: '%v' but expected: '%v'", s.TotalAskAmount(), 25)
	}
}
