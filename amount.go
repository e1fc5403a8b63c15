package match

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ParseUnits converts a human-readable amount such as "12.5" into base
// units of an asset with the given decimals. Fractions finer than one base
// unit are rejected rather than rounded.
func ParseUnits(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, ErrInvalidAmount)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("parse %q: %w", s, ErrInvalidAmount)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("parse %q: more than %d decimals: %w", s, decimals, ErrInvalidAmount)
	}

	amount, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return nil, ErrOverflow
	}
	return amount, nil
}

// FormatUnits renders base units as a human-readable amount.
func FormatUnits(amount *uint256.Int, decimals int32) string {
	return decimal.NewFromBigInt(amount.ToBig(), -decimals).String()
}
