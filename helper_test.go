package match

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")

	DAI = MustSymbol("DAI")
	ETH = MustSymbol("ETH")
	BTC = MustSymbol("BTC")
)

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// testExchange is a running engine with DAI as reference and ETH, BTC listed.
type testExchange struct {
	*Engine
	reservoirs map[Symbol]*MemoryReservoir
	logs       *MemoryPublishLog
}

func newTestExchange(t *testing.T, opts ...Option) *testExchange {
	t.Helper()

	logs := NewMemoryPublishLog()
	engine := NewEngine(DAI, append([]Option{WithPublishLog(logs)}, opts...)...)
	go func() {
		_ = engine.Start()
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
	})

	ex := &testExchange{Engine: engine, reservoirs: make(map[Symbol]*MemoryReservoir), logs: logs}
	for _, symbol := range []Symbol{DAI, ETH, BTC} {
		r := NewMemoryReservoir(symbol.String())
		require.NoError(t, engine.RegisterAsset(context.Background(), symbol, r, 18))
		ex.reservoirs[symbol] = r
	}
	return ex
}

// fund mints amount to trader's wallet, approves the exchange and deposits it.
func (ex *testExchange) fund(t *testing.T, trader common.Address, symbol Symbol, amount uint64) {
	t.Helper()
	r := ex.reservoirs[symbol]
	require.NoError(t, r.Mint(trader, u(amount)))
	r.Approve(trader, u(amount))
	require.NoError(t, ex.Deposit(context.Background(), trader, symbol, u(amount)))
}

func (ex *testExchange) balance(t *testing.T, trader common.Address, symbol Symbol) uint64 {
	t.Helper()
	bal, err := ex.Balance(context.Background(), trader, symbol)
	require.NoError(t, err)
	return bal.Uint64()
}
