package dispatch

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notitrade/internal/exchange"
	"notitrade/internal/models"
	"notitrade/internal/queue"
	"notitrade/internal/signal"
)

func TestPipelineCollapsesRepeatedSignal(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := queue.NewRedisQueue(client, queue.Options{Name: "trades"}, log)
	producer := NewProducer(signal.NewDefaultMapper(), q, 0, log)

	ex := &fakeExchange{
		accounts: []exchange.CrossAccount{{MarginAccount: "USDT", WithdrawAvailable: decimal.NewFromInt(10)}},
		limit:    &exchange.OrderLimit{List: []exchange.ContractOrderLimit{{ContractCode: "XRP-USDT", OpenLimit: decimal.NewFromInt(100)}}},
	}
	consumer := NewConsumer(ex, queue.NewClaimStore(client, "trades", 0, 0), nil, ConsumerConfig{OpenVolume: 3}, log)

	sig, err := signal.Parse("「X」「做多」「0.50」「XRP/USDT」")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		msg, err := producer.Dispatch(ctx, sig)
		require.NoError(t, err)
		assert.Equal(t, models.OrderIntent{Exchange: "huobi", Side: models.OrderSideBuy, ContractSymbol: "xrplsusdt"}, msg.Intent)
	}

	n, err := q.ProcessDue(ctx, consumer.Handle)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, ex.placed, 1)
	assert.Equal(t, int64(3), ex.placed[0].Volume)
	assert.Equal(t, models.DirectionBuy, ex.placed[0].Direction)
	assert.Equal(t, models.OffsetOpen, ex.placed[0].Offset)
	assert.Equal(t, sig.ClientOrderID(), *ex.placed[0].ClientOrderID)
	assert.Zero(t, client.LLen(ctx, "trades:processing").Val())
}

func TestPipelineTradesAfterShutdownMidOrder(t *testing.T) {
	bg := context.Background()
	log, _ := logtest.NewNullLogger()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := queue.NewRedisQueue(client, queue.Options{Name: "trades", RetryDelay: 10 * time.Millisecond}, log)
	producer := NewProducer(signal.NewDefaultMapper(), q, 0, log)

	sig, err := signal.Parse("「X」「平多」「0.50」「XRP/USDT」")
	require.NoError(t, err)
	_, err = producer.Dispatch(bg, sig)
	require.NoError(t, err)

	// the worker is signalled while the order request is in flight
	ctx, cancel := context.WithCancel(bg)
	defer cancel()
	ex := &fakeExchange{
		positions: []exchange.CrossPosition{{ContractCode: "XRP-USDT", Direction: models.DirectionBuy, Available: decimal.NewFromInt(4)}},
		interrupt: cancel,
	}
	claimKey := "trades:claim:" + strconv.FormatUint(sig.ClientOrderID(), 10)

	consumer := NewConsumer(ex, queue.NewClaimStore(client, "trades", time.Minute, time.Hour), nil, ConsumerConfig{}, log)
	n, _ := q.ProcessDue(ctx, consumer.Handle)
	require.Equal(t, 1, n)
	assert.Empty(t, ex.placed)
	assert.False(t, mr.Exists(claimKey), "the interrupted order keeps no claim")

	// restart
	require.NoError(t, q.Recover(bg))
	require.Eventually(t, func() bool {
		_, err := q.ProcessDue(bg, consumer.Handle)
		return err == nil && len(ex.placed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(4), ex.placed[0].Volume)
	assert.Equal(t, sig.ClientOrderID(), *ex.placed[0].ClientOrderID)
	assert.Equal(t, "done", client.Get(bg, claimKey).Val())
	assert.Zero(t, client.LLen(bg, "trades:processing").Val())
	assert.Zero(t, client.ZCard(bg, "trades:delayed").Val())
}
