package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionDirectionOffset(t *testing.T) {
	tests := []struct {
		action    Action
		direction Direction
		offset    Offset
	}{
		{ActionOpenLong, DirectionBuy, OffsetOpen},
		{ActionCloseLong, DirectionSell, OffsetClose},
		{ActionOpenShort, DirectionSell, OffsetOpen},
		{ActionCloseShort, DirectionBuy, OffsetClose},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.True(t, tt.action.IsAvailable())
			assert.Equal(t, tt.direction, tt.action.Direction())
			assert.Equal(t, tt.offset, tt.action.Offset())
		})
	}

	unknown := Action("观望")
	assert.False(t, unknown.IsAvailable())
	assert.Empty(t, unknown.Direction())
	assert.Empty(t, unknown.Offset())
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionSell, DirectionBuy.Opposite())
	assert.Equal(t, DirectionBuy, DirectionSell.Opposite())
	assert.True(t, DirectionBuy.IsAvailable())
	assert.False(t, Direction("hold").IsAvailable())
}

func TestClientOrderID(t *testing.T) {
	sig := TradeSignal{Strategy: "TrendBot", Action: ActionOpenLong, Price: "0.50", RawSymbol: "XRP/USDT"}

	id := sig.ClientOrderID()
	assert.Equal(t, id, sig.ClientOrderID(), "same content must yield the same id")
	assert.NotZero(t, id)
	assert.LessOrEqual(t, id, uint64(math.MaxInt64))

	other := sig
	other.Price = "0.51"
	assert.NotEqual(t, id, other.ClientOrderID())

	// field boundaries are part of the hash
	a := TradeSignal{Strategy: "ab", Action: "c"}
	b := TradeSignal{Strategy: "a", Action: "bc"}
	assert.NotEqual(t, a.ClientOrderID(), b.ClientOrderID())
}
