package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"notitrade/internal/metrics"
	"notitrade/internal/models"
	"notitrade/internal/signal"
)

// DefaultDelay is the debounce window between enqueue and processing.
// Bursts of the same notification within it collapse on the consumer's
// client order id claim.
const DefaultDelay = 10 * time.Second

type Enqueuer interface {
	Enqueue(ctx context.Context, body []byte, delay time.Duration) (string, error)
}

type Producer struct {
	mapper *signal.Mapper
	queue  Enqueuer
	delay  time.Duration
	now    func() time.Time
	log    logrus.FieldLogger
}

func NewProducer(mapper *signal.Mapper, queue Enqueuer, delay time.Duration, log logrus.FieldLogger) *Producer {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Producer{
		mapper: mapper,
		queue:  queue,
		delay:  delay,
		now:    time.Now,
		log:    log.WithField("component", "producer"),
	}
}

// Dispatch maps sig to an order intent and enqueues it. Unsupported
// instruments are rejected before anything reaches the queue.
func (p *Producer) Dispatch(ctx context.Context, sig models.TradeSignal) (*models.QueuedMessage, error) {
	log := p.log.WithFields(logrus.Fields{
		"strategy": sig.Strategy,
		"action":   sig.Action,
		"symbol":   sig.RawSymbol,
		"price":    sig.Price,
	})

	mapping, err := p.mapper.Map(sig.Action, sig.RawSymbol)
	if err != nil {
		log.WithError(err).Warn("signal rejected")
		return nil, err
	}

	msg := &models.QueuedMessage{
		Intent:        mapping.Intent,
		Action:        sig.Action,
		ContractCode:  mapping.ContractCode,
		ClientOrderID: sig.ClientOrderID(),
		Strategy:      sig.Strategy,
		Price:         sig.Price,
		RawSymbol:     sig.RawSymbol,
		CreatedAt:     p.now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal trade message")
	}

	id, err := p.queue.Enqueue(ctx, body, p.delay)
	if err != nil {
		log.WithError(err).Error("failed to enqueue trade message")
		return nil, errors.Wrap(err, "failed to enqueue trade message")
	}
	msg.ID = id

	metrics.DispatchedTotal.WithLabelValues(msg.Intent.ContractSymbol, string(msg.Intent.Side)).Inc()
	log.WithFields(logrus.Fields{
		"message_id":      id,
		"side":            msg.Intent.Side,
		"contract_symbol": msg.Intent.ContractSymbol,
		"client_order_id": msg.ClientOrderID,
		"delay":           p.delay,
	}).Info("trade message enqueued")

	return msg, nil
}
