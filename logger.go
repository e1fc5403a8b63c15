package match

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger allows setting a custom logger
func SetLogger(l *slog.Logger) {
	logger = l
}

func orderAttr(order *Order) slog.Attr {
	return slog.Group("order",
		slog.Uint64("id", order.ID),
		slog.String("trader", order.Trader.Hex()),
		slog.String("side", order.Side.String()),
		slog.String("price", order.Price.Dec()),
		slog.String("amount", order.Amount.Dec()),
		slog.String("filled", order.Filled.Dec()),
	)
}
