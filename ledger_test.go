package match

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*Ledger, *MemoryReservoir) {
	t.Helper()
	reg := NewAssetRegistry(DAI)
	dai := NewMemoryReservoir("DAI")
	require.NoError(t, reg.Register(DAI, dai, 18))
	require.NoError(t, dai.Mint(alice, u(1000)))
	dai.Approve(alice, u(1000))
	return NewLedger(reg), dai
}

func TestLedgerDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	ledger, dai := newTestLedger(t)

	require.NoError(t, ledger.Deposit(ctx, alice, DAI, u(300)))
	assert.Equal(t, uint64(300), ledger.Balance(alice, DAI).Uint64())
	assert.Equal(t, uint64(300), ledger.Total(DAI).Uint64())
	assert.Equal(t, uint64(300), dai.Custody().Uint64())
	assert.Equal(t, uint64(700), dai.BalanceOf(alice).Uint64())

	require.NoError(t, ledger.Withdraw(ctx, alice, DAI, u(100)))
	assert.Equal(t, uint64(200), ledger.Balance(alice, DAI).Uint64())
	assert.Equal(t, uint64(200), dai.Custody().Uint64())
	assert.Equal(t, uint64(800), dai.BalanceOf(alice).Uint64())

	assert.ErrorIs(t, ledger.Withdraw(ctx, alice, DAI, u(201)), ErrInsufficientBalance)
	assert.ErrorIs(t, ledger.Withdraw(ctx, bob, DAI, u(1)), ErrInsufficientBalance)
	assert.Equal(t, uint64(200), ledger.Balance(alice, DAI).Uint64())
}

func TestLedgerValidation(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	assert.ErrorIs(t, ledger.Deposit(ctx, alice, ETH, u(1)), ErrUnknownAsset)
	assert.ErrorIs(t, ledger.Withdraw(ctx, alice, ETH, u(1)), ErrUnknownAsset)
	assert.ErrorIs(t, ledger.Deposit(ctx, alice, DAI, u(0)), ErrInvalidAmount)
	assert.ErrorIs(t, ledger.Deposit(ctx, alice, DAI, nil), ErrInvalidAmount)
	assert.ErrorIs(t, ledger.Withdraw(ctx, alice, DAI, u(0)), ErrInvalidAmount)
}

func TestLedgerReservoirFailure(t *testing.T) {
	ctx := context.Background()
	ledger, dai := newTestLedger(t)

	// bob never approved the exchange.
	require.NoError(t, dai.Mint(bob, u(50)))
	err := ledger.Deposit(ctx, bob, DAI, u(50))
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.True(t, ledger.Balance(bob, DAI).IsZero())
	assert.True(t, ledger.Total(DAI).IsZero())
}

// stuckReservoir accepts deposits but refuses every withdrawal.
type stuckReservoir struct {
	*MemoryReservoir
}

func (r stuckReservoir) Push(ctx context.Context, to common.Address, amount *uint256.Int) error {
	return ErrReservoirBalance
}

func TestLedgerWithdrawRollback(t *testing.T) {
	ctx := context.Background()
	reg := NewAssetRegistry(DAI)
	inner := NewMemoryReservoir("DAI")
	require.NoError(t, reg.Register(DAI, stuckReservoir{inner}, 18))
	require.NoError(t, inner.Mint(alice, u(100)))
	inner.Approve(alice, u(100))

	ledger := NewLedger(reg)
	require.NoError(t, ledger.Deposit(ctx, alice, DAI, u(100)))

	err := ledger.Withdraw(ctx, alice, DAI, u(40))
	assert.ErrorIs(t, err, ErrReservoirBalance)
	assert.Equal(t, uint64(100), ledger.Balance(alice, DAI).Uint64())
	assert.Equal(t, uint64(100), ledger.Total(DAI).Uint64())
}

func TestLedgerTransfer(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	require.NoError(t, ledger.Deposit(ctx, alice, DAI, u(100)))

	require.NoError(t, ledger.transfer(alice, bob, DAI, u(30)))
	assert.Equal(t, uint64(70), ledger.Balance(alice, DAI).Uint64())
	assert.Equal(t, uint64(30), ledger.Balance(bob, DAI).Uint64())
	assert.Equal(t, uint64(100), ledger.Total(DAI).Uint64())

	assert.ErrorIs(t, ledger.transfer(bob, alice, DAI, u(31)), ErrInsufficientBalance)
	assert.Equal(t, uint64(30), ledger.Balance(bob, DAI).Uint64())

	// Draining an account removes it from the listings.
	require.NoError(t, ledger.transfer(bob, alice, DAI, u(30)))
	assert.Empty(t, ledger.Balances(bob))
	entries := ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, alice, entries[0].Trader)
	assert.Equal(t, uint64(100), entries[0].Amount.Uint64())
}
