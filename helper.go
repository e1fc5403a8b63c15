package match

import "github.com/holiman/uint256"

// DepthChange is the effect of one log on a single price level.
// Sizes are unsigned, so Decrease tells the direction.
type DepthChange struct {
	Side     Side
	Price    uint256.Int
	Size     uint256.Int
	Decrease bool
}

// CalculateDepthChange calculates the depth change based on the book log.
// ok is false for logs that leave depth untouched.
// Note: For LogTypeMatch, the side returned is the Maker's side (opposite of the log's side).
func CalculateDepthChange(log *OrderBookLog) (change DepthChange, ok bool) {
	switch log.Type {
	case LogTypeOpen:
		return DepthChange{Side: log.Side, Price: log.Price, Size: log.Size}, true
	case LogTypeCancel, LogTypeEvict:
		return DepthChange{Side: log.Side, Price: log.Price, Size: log.Size, Decrease: true}, true
	case LogTypeMatch:
		// Match reduces liquidity from the Maker side.
		return DepthChange{Side: log.Side.Opposite(), Price: log.Price, Size: log.Size, Decrease: true}, true
	}
	// Done logs follow the match that emptied the order; custody logs never touch a book.
	return DepthChange{}, false
}
