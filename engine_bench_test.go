package match

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func newBenchEngine(b *testing.B, opts ...Option) (*Engine, map[Symbol]*MemoryReservoir) {
	b.Helper()
	engine := NewEngine(DAI, append([]Option{WithPublishLog(NewDiscardPublishLog())}, opts...)...)
	go func() { _ = engine.Start() }()
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
	})

	ctx := context.Background()
	reservoirs := make(map[Symbol]*MemoryReservoir)
	for _, symbol := range []Symbol{DAI, ETH} {
		r := NewMemoryReservoir(symbol.String())
		if err := engine.RegisterAsset(ctx, symbol, r, 18); err != nil {
			b.Fatal(err)
		}
		reservoirs[symbol] = r
	}
	return engine, reservoirs
}

func benchFund(b *testing.B, engine *Engine, r *MemoryReservoir, symbol Symbol, amount *uint256.Int) {
	b.Helper()
	for _, trader := range []common.Address{alice, bob} {
		if err := r.Mint(trader, amount); err != nil {
			b.Fatal(err)
		}
		r.Approve(trader, amount)
		if err := engine.Deposit(context.Background(), trader, symbol, amount); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLimitOrder(b *testing.B) {
	engine, reservoirs := newBenchEngine(b)
	benchFund(b, engine, reservoirs[DAI], DAI, new(uint256.Int).Lsh(uint256.NewInt(1), 200))
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		price := uint256.NewInt(uint64(1000 + i%100))
		if _, err := engine.LimitOrder(ctx, alice, ETH, Buy, price, uint256.NewInt(1)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMarketOrder(b *testing.B) {
	engine, reservoirs := newBenchEngine(b)
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	benchFund(b, engine, reservoirs[DAI], DAI, huge)
	benchFund(b, engine, reservoirs[ETH], ETH, huge)
	ctx := context.Background()

	for i := 0; i < b.N; i++ {
		if _, err := engine.LimitOrder(ctx, alice, ETH, Sell, uint256.NewInt(uint64(1000+i%100)), uint256.NewInt(1)); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.MarketOrder(ctx, bob, ETH, Buy, uint256.NewInt(1)); err != nil {
			b.Fatal(err)
		}
	}
}
