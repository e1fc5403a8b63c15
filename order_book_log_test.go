package match

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBookLogJSON(t *testing.T) {
	maker := &Order{ID: 7, Trader: alice, Side: Sell, Symbol: ETH, Price: *u(12), Amount: *u(10)}
	log := NewMatchLog(42, 3, 9, bob, Buy, Limit, maker, u(4), u(48)).Clone()
	log.RequestID = "req-1"
	log.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	data, err := json.Marshal(log)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "match", raw["type"])
	assert.Equal(t, "12", raw["price"])
	assert.Equal(t, "4", raw["size"])
	assert.Equal(t, "48", raw["amount"])
	assert.Equal(t, "ETH", raw["symbol"])
	assert.Contains(t, raw, "maker")

	var decoded OrderBookLog
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, uint64(42), decoded.SequenceID)
	assert.Equal(t, uint64(3), decoded.TradeID)
	assert.Equal(t, uint64(9), decoded.OrderID)
	assert.Equal(t, uint64(7), decoded.MakerOrderID)
	assert.Equal(t, alice, decoded.Maker)
	assert.Equal(t, bob, decoded.Trader)
	assert.Equal(t, Buy, decoded.Side)
	assert.Equal(t, ETH, decoded.Symbol)
	assert.Equal(t, "48", decoded.Amount.Dec())
	assert.True(t, log.CreatedAt.Equal(decoded.CreatedAt))
}

func TestOrderBookLogJSONOmitsMaker(t *testing.T) {
	log := NewCustodyLog(1, LogTypeDeposit, alice, DAI, u(100)).Clone()

	data, err := json.Marshal(log)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "maker")
	assert.NotContains(t, raw, "price")
	assert.NotContains(t, raw, "amount")
	assert.Equal(t, "100", raw["size"])

	var decoded OrderBookLog
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, LogTypeDeposit, decoded.Type)
	assert.Equal(t, DAI, decoded.Symbol)
	assert.Equal(t, uint64(100), decoded.Size.Uint64())
	assert.True(t, decoded.Price.IsZero())
}

func TestOpenLogCarriesOpenSize(t *testing.T) {
	order := &Order{ID: 1, Trader: alice, Side: Buy, Symbol: ETH, Price: *u(10), Amount: *u(10), Filled: *u(3)}
	log := NewOpenLog(1, order)
	assert.Equal(t, uint64(7), log.Size.Uint64())
	releaseBookLog(log)
}
