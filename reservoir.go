package match

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Reservoir holds the real funds of one asset on behalf of the engine.
// Both calls must either complete in full or fail without side effects.
type Reservoir interface {
	// Pull moves amount from a source that has authorized the engine into custody.
	Pull(ctx context.Context, from common.Address, amount *uint256.Int) error
	// Push moves amount from custody to the recipient.
	Push(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// MemoryReservoir is an in-memory token with approve/transferFrom semantics.
// It is safe for concurrent use.
type MemoryReservoir struct {
	mu         sync.RWMutex
	name       string
	wallets    map[common.Address]*uint256.Int
	allowances map[common.Address]*uint256.Int
	custody    uint256.Int
}

// NewMemoryReservoir creates an empty reservoir.
func NewMemoryReservoir(name string) *MemoryReservoir {
	return &MemoryReservoir{
		name:       name,
		wallets:    make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]*uint256.Int),
	}
}

func (r *MemoryReservoir) Name() string {
	return r.name
}

// Mint credits owner's wallet out of thin air (faucet).
func (r *MemoryReservoir) Mint(owner common.Address, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bal := r.wallet(owner)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return ErrOverflow
	}
	bal.Set(sum)
	return nil
}

// Approve sets how much the engine may pull from owner.
func (r *MemoryReservoir) Approve(owner common.Address, amount *uint256.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowances[owner] = amount.Clone()
}

// BalanceOf returns owner's wallet balance outside of custody.
func (r *MemoryReservoir) BalanceOf(owner common.Address) *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bal, ok := r.wallets[owner]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Allowance returns the remaining amount the engine may pull from owner.
func (r *MemoryReservoir) Allowance(owner common.Address) *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.allowances[owner]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Custody returns the total held on behalf of the engine.
func (r *MemoryReservoir) Custody() *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.custody.Clone()
}

func (r *MemoryReservoir) Pull(ctx context.Context, from common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	allowance, ok := r.allowances[from]
	if !ok || allowance.Lt(amount) {
		return ErrNotAuthorized
	}
	bal := r.wallet(from)
	if bal.Lt(amount) {
		return ErrReservoirBalance
	}
	if _, overflow := new(uint256.Int).AddOverflow(&r.custody, amount); overflow {
		return ErrOverflow
	}

	allowance.Sub(allowance, amount)
	bal.Sub(bal, amount)
	r.custody.Add(&r.custody, amount)
	return nil
}

func (r *MemoryReservoir) Push(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.custody.Lt(amount) {
		return ErrReservoirBalance
	}
	bal := r.wallet(to)
	if _, overflow := new(uint256.Int).AddOverflow(bal, amount); overflow {
		return ErrOverflow
	}

	r.custody.Sub(&r.custody, amount)
	bal.Add(bal, amount)
	return nil
}

// wallet must be called with mu held.
func (r *MemoryReservoir) wallet(owner common.Address) *uint256.Int {
	bal, ok := r.wallets[owner]
	if !ok {
		bal = new(uint256.Int)
		r.wallets[owner] = bal
	}
	return bal
}
