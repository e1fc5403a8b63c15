package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"pgregory.net/rapid"
)

// Conservation: for every symbol, the sum of trader balances equals what
// was deposited minus what was withdrawn, which is also what the reservoir
// holds in custody. No balance may ever exceed that sum.
func TestProperty_Conservation(t *testing.T) {
	traders := []common.Address{alice, bob, carol}
	symbols := []Symbol{DAI, ETH, BTC}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		limitMatching := rapid.Bool().Draw(t, "limitMatching")

		var opts []Option
		if limitMatching {
			opts = append(opts, WithLimitOrderMatching())
		}
		engine := NewEngine(DAI, opts...)
		go func() {
			_ = engine.Start()
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = engine.Shutdown(sctx)
		}()

		reservoirs := make(map[Symbol]*MemoryReservoir)
		net := make(map[Symbol]*uint256.Int)
		for _, symbol := range symbols {
			r := NewMemoryReservoir(symbol.String())
			if err := engine.RegisterAsset(ctx, symbol, r, 0); err != nil {
				t.Fatalf("register %s: %v", symbol, err)
			}
			for _, trader := range traders {
				_ = r.Mint(trader, u(1_000_000))
				r.Approve(trader, u(1_000_000))
			}
			reservoirs[symbol] = r
			net[symbol] = new(uint256.Int)
		}

		var placed []uint64
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			trader := rapid.SampledFrom(traders).Draw(t, "trader")
			symbol := rapid.SampledFrom(symbols).Draw(t, "symbol")
			side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side")
			amount := u(rapid.Uint64Range(1, 200).Draw(t, "amount"))
			price := u(rapid.Uint64Range(1, 20).Draw(t, "price"))

			var err error
			switch op := rapid.IntRange(0, 4).Draw(t, "op"); op {
			case 0:
				if err = engine.Deposit(ctx, trader, symbol, amount); err == nil {
					net[symbol].Add(net[symbol], amount)
				}
			case 1:
				if err = engine.Withdraw(ctx, trader, symbol, amount); err == nil {
					net[symbol].Sub(net[symbol], amount)
				}
			case 2:
				var order *Order
				if order, err = engine.LimitOrder(ctx, trader, symbol, side, price, amount); err == nil {
					placed = append(placed, order.ID)
				}
			case 3:
				_, err = engine.MarketOrder(ctx, trader, symbol, side, amount)
			case 4:
				if len(placed) > 0 {
					id := rapid.SampledFrom(placed).Draw(t, "id")
					_, err = engine.CancelOrder(ctx, trader, symbol, id)
				}
			}
			if errors.Is(err, ErrShutdown) || errors.Is(err, ErrTimeout) {
				t.Fatalf("step %d: %v", i, err)
			}

			for _, symbol := range symbols {
				checkConservation(t, engine, traders, symbol, net[symbol], reservoirs[symbol])
			}
		}

		for _, symbol := range []Symbol{ETH, BTC} {
			for _, side := range []Side{Buy, Sell} {
				orders, err := engine.ListOrders(ctx, symbol, side)
				if err != nil {
					t.Fatalf("list %s %s: %v", symbol, side, err)
				}
				for _, o := range orders {
					if !o.Filled.Lt(&o.Amount) {
						t.Fatalf("order %d rests with filled %s of %s", o.ID, o.Filled.Dec(), o.Amount.Dec())
					}
				}
			}
		}
	})
}

func checkConservation(t *rapid.T, engine *Engine, traders []common.Address, symbol Symbol, want *uint256.Int, r *MemoryReservoir) {
	ctx := context.Background()

	total, err := engine.Total(ctx, symbol)
	if err != nil {
		t.Fatalf("total %s: %v", symbol, err)
	}
	if !total.Eq(want) {
		t.Fatalf("%s: ledger total %s, deposited minus withdrawn %s", symbol, total.Dec(), want.Dec())
	}
	if !r.Custody().Eq(want) {
		t.Fatalf("%s: reservoir custody %s, want %s", symbol, r.Custody().Dec(), want.Dec())
	}

	sum := new(uint256.Int)
	for _, trader := range traders {
		bal, err := engine.Balance(ctx, trader, symbol)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if bal.Gt(want) {
			t.Fatalf("%s: %s holds %s, more than the %s in custody", symbol, trader.Hex(), bal.Dec(), want.Dec())
		}
		sum.Add(sum, bal)
	}
	if !sum.Eq(want) {
		t.Fatalf("%s: balances sum to %s, want %s", symbol, sum.Dec(), want.Dec())
	}
}
