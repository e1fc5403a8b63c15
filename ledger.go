package match

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type balanceKey struct {
	trader common.Address
	symbol Symbol
}

// BalanceEntry is one (trader, symbol) position in custody.
type BalanceEntry struct {
	Trader common.Address
	Symbol Symbol
	Amount uint256.Int
}

// Ledger is the custody ledger: the only place internal balances change.
// It is owned by the engine loop and is not safe for concurrent use.
type Ledger struct {
	registry *AssetRegistry
	balances map[balanceKey]*uint256.Int
	totals   map[Symbol]*uint256.Int
}

// NewLedger creates an empty ledger validating symbols against registry.
func NewLedger(registry *AssetRegistry) *Ledger {
	return &Ledger{
		registry: registry,
		balances: make(map[balanceKey]*uint256.Int),
		totals:   make(map[Symbol]*uint256.Int),
	}
}

// Deposit pulls amount from the asset's reservoir and credits trader.
func (l *Ledger) Deposit(ctx context.Context, trader common.Address, symbol Symbol, amount *uint256.Int) error {
	asset, err := l.registry.Resolve(symbol)
	if err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}

	// Check the credit first so a successful pull is never followed by a failure.
	if _, overflow := new(uint256.Int).AddOverflow(l.total(symbol), amount); overflow {
		return ErrOverflow
	}

	if err := asset.Reservoir.Pull(ctx, trader, amount); err != nil {
		return fmt.Errorf("deposit %s: %w", symbol, err)
	}

	l.credit(trader, symbol, amount)
	return nil
}

// Withdraw debits trader and pushes amount out of the asset's reservoir.
func (l *Ledger) Withdraw(ctx context.Context, trader common.Address, symbol Symbol, amount *uint256.Int) error {
	asset, err := l.registry.Resolve(symbol)
	if err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}

	if err := l.debit(trader, symbol, amount); err != nil {
		return err
	}

	if err := asset.Reservoir.Push(ctx, trader, amount); err != nil {
		l.credit(trader, symbol, amount)
		return fmt.Errorf("withdraw %s: %w", symbol, err)
	}
	return nil
}

// Balance returns a copy of trader's balance; zero when none is held.
func (l *Ledger) Balance(trader common.Address, symbol Symbol) *uint256.Int {
	if bal, ok := l.balances[balanceKey{trader, symbol}]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Total returns the sum of all trader balances of symbol.
func (l *Ledger) Total(symbol Symbol) *uint256.Int {
	return l.total(symbol).Clone()
}

// Balances returns trader's non-zero balances sorted by symbol.
func (l *Ledger) Balances(trader common.Address) []BalanceEntry {
	entries := make([]BalanceEntry, 0)
	for key, bal := range l.balances {
		if key.trader != trader || bal.IsZero() {
			continue
		}
		entries = append(entries, BalanceEntry{Trader: key.trader, Symbol: key.symbol, Amount: *bal})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Symbol[:], entries[j].Symbol[:]) < 0
	})
	return entries
}

// Entries returns every non-zero balance ordered by trader, then symbol.
func (l *Ledger) Entries() []BalanceEntry {
	entries := make([]BalanceEntry, 0, len(l.balances))
	for key, bal := range l.balances {
		if bal.IsZero() {
			continue
		}
		entries = append(entries, BalanceEntry{Trader: key.trader, Symbol: key.symbol, Amount: *bal})
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := bytes.Compare(entries[i].Trader[:], entries[j].Trader[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(entries[i].Symbol[:], entries[j].Symbol[:]) < 0
	})
	return entries
}

// transfer moves amount of symbol between two internal accounts.
// Settlement is the only caller; it checks funds beforehand.
func (l *Ledger) transfer(from, to common.Address, symbol Symbol, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := l.debit(from, symbol, amount); err != nil {
		return err
	}
	l.credit(to, symbol, amount)
	return nil
}

// restore sets a balance directly. Used when loading a snapshot.
func (l *Ledger) restore(trader common.Address, symbol Symbol, amount *uint256.Int) error {
	if _, overflow := new(uint256.Int).AddOverflow(l.total(symbol), amount); overflow {
		return ErrOverflow
	}
	l.credit(trader, symbol, amount)
	return nil
}

// credit cannot overflow: a single balance never exceeds the symbol total,
// and callers bound the total before crediting new funds.
func (l *Ledger) credit(trader common.Address, symbol Symbol, amount *uint256.Int) {
	key := balanceKey{trader, symbol}
	bal, ok := l.balances[key]
	if !ok {
		bal = new(uint256.Int)
		l.balances[key] = bal
	}
	bal.Add(bal, amount)

	total := l.total(symbol)
	total.Add(total, amount)
}

func (l *Ledger) debit(trader common.Address, symbol Symbol, amount *uint256.Int) error {
	key := balanceKey{trader, symbol}
	bal, ok := l.balances[key]
	if !ok || bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	if bal.IsZero() {
		delete(l.balances, key)
	}

	total := l.total(symbol)
	total.Sub(total, amount)
	return nil
}

func (l *Ledger) total(symbol Symbol) *uint256.Int {
	t, ok := l.totals[symbol]
	if !ok {
		t = new(uint256.Int)
		l.totals[symbol] = t
	}
	return t
}
