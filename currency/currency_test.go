package currency

import (
	"testing"
)

func TestNewCode(t *testing.T) {
	t.Parallel()
	if c := NewCode(" btc "); c != BTC {
		t.Errorf("received: '%v' but expected: '%v'", c, BTC)
	}
	if c := NewCode("USDT"); c.String() != "USDT" {
		t.Errorf("received: '%v' but expected: '%v'", c.String(), "USDT")
	}
}

func TestCodeCasing(t *testing.T) {
	t.Parallel()
	if c := BTC.Lower(); c.String() != "btc" {
		t.Errorf("received: '%v' but expected: '%v'", c, "btc")
	}
	if c := BTC.Lower().Upper(); c != BTC {
		t.Errorf("received: '%v' but expected: '%v'", c, BTC)
	}
}

func TestCodeIsEmpty(t *testing.T) {
	t.Parallel()
	if !EMPTYCODE.IsEmpty() {
		t.Error("expected empty code")
	}
	if BTC.IsEmpty() {
		t.Error("expected non-empty code")
	}
}

func TestCodeEqual(t *testing.T) {
	t.Parallel()
	if !BTC.Equal(NewCode("btc")) {
		t.Error("expected equality regardless of casing")
	}
	if BTC.Equal(ETH) {
		t.Error("expected inequality")
	}
}
