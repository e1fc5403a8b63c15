package match

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Commands       *prometheus.CounterVec
	CommandLatency *prometheus.HistogramVec
	Fills          *prometheus.CounterVec
	TradedVolume   *prometheus.CounterVec
	RestingOrders  *prometheus.GaugeVec
	Custody        *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_commands_total",
				Help: "Commands processed by the engine loop, by type and result",
			},
			[]string{"type", "result"},
		),
		CommandLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exchange_command_latency_seconds",
				Help:    "Time spent executing a command on the engine loop",
				Buckets: prometheus.ExponentialBuckets(0.000005, 4, 10),
			},
			[]string{"type"},
		),
		Fills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_fills_total",
				Help: "Settled fills by symbol",
			},
			[]string{"symbol"},
		),
		TradedVolume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_traded_volume",
				Help: "Base units traded by symbol",
			},
			[]string{"symbol"},
		),
		RestingOrders: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "exchange_resting_orders",
				Help: "Orders resting in the book by symbol and side",
			},
			[]string{"symbol", "side"},
		),
		Custody: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "exchange_custody_balance",
				Help: "Sum of trader balances by symbol, in base units",
			},
			[]string{"symbol"},
		),
	}

	reg.MustRegister(m.Commands, m.CommandLatency, m.Fills, m.TradedVolume, m.RestingOrders, m.Custody)
	return m
}

func (m *Metrics) observeCommand(typ string, err error, started time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Commands.WithLabelValues(typ, result).Inc()
	m.CommandLatency.WithLabelValues(typ).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeFill(symbol Symbol, size *uint256.Int) {
	if m == nil {
		return
	}
	m.Fills.WithLabelValues(symbol.String()).Inc()
	m.TradedVolume.WithLabelValues(symbol.String()).Add(toFloat(size))
}

func (m *Metrics) observeBook(book *OrderBook) {
	if m == nil {
		return
	}
	stats := book.Stats()
	m.RestingOrders.WithLabelValues(book.symbol.String(), Buy.String()).Set(float64(stats.BidOrderCount))
	m.RestingOrders.WithLabelValues(book.symbol.String(), Sell.String()).Set(float64(stats.AskOrderCount))
}

func (m *Metrics) observeCustody(symbol Symbol, total *uint256.Int) {
	if m == nil {
		return
	}
	m.Custody.WithLabelValues(symbol.String()).Set(toFloat(total))
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
