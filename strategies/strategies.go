package strategies

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/quantave/backsim/strategies/dollarcostaverage"
	"github.com/quantave/backsim/strategies/rsi"
	"github.com/quantave/backsim/strategies/script"
)

var (
	m         sync.Mutex
	supported = []Handler{
		new(dollarcostaverage.Strategy),
		new(rsi.Strategy),
		new(script.Strategy),
	}
)

// GetStrategies returns the registered strategies
func GetStrategies() []Handler {
	m.Lock()
	defer m.Unlock()
	resp := make([]Handler, len(supported))
	copy(resp, supported)
	return resp
}

// LoadStrategyByName returns a fresh instance of the named strategy with
// its defaults applied
func LoadStrategyByName(name string) (Handler, error) {
	m.Lock()
	defer m.Unlock()
	for i := range supported {
		if !strings.EqualFold(name, supported[i].Name()) {
			continue
		}
		// a new instance so state is not shared across runs
		strategy, ok := reflect.New(reflect.ValueOf(supported[i]).Elem().Type()).Interface().(Handler)
		if !ok {
			return nil, fmt.Errorf("'%v' %w", name, ErrStrategyNotFound)
		}
		strategy.SetDefaults()
		return strategy, nil
	}
	return nil, fmt.Errorf("'%v' %w", name, ErrStrategyNotFound)
}

// AddStrategy registers a custom strategy alongside the bundled set
func AddStrategy(strategy Handler) error {
	if strategy == nil {
		return errNilStrategy
	}
	m.Lock()
	defer m.Unlock()
	for i := range supported {
		if strings.EqualFold(supported[i].Name(), strategy.Name()) {
			return fmt.Errorf("'%v' %w", strategy.Name(), ErrStrategyAlreadyExists)
		}
	}
	supported = append(supported, strategy)
	return nil
}
