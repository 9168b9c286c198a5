package dispatch

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"notitrade/internal/exception"
	"notitrade/internal/exchange"
	"notitrade/internal/metrics"
	"notitrade/internal/models"
	"notitrade/internal/queue"
)

type Exchange interface {
	CrossAccountInfo(ctx context.Context, marginAccount string) ([]exchange.CrossAccount, error)
	OrderLimit(ctx context.Context, contractCode, priceType string) (*exchange.OrderLimit, error)
	CrossPositionInfo(ctx context.Context, contractCode string) ([]exchange.CrossPosition, error)
	PlaceCrossOrder(ctx context.Context, req exchange.CrossOrderRequest) (*exchange.CrossOrderResult, error)
}

type Claimer interface {
	Claim(ctx context.Context, key string) (queue.ClaimState, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

const settleTimeout = 5 * time.Second

type OrderRecorder interface {
	SaveOrder(ctx context.Context, order *models.Order) error
}

type ConsumerConfig struct {
	LeverRate      int
	OrderPriceType string
	MarginAccount  string
	OpenVolume     int64
}

type Consumer struct {
	exchange Exchange
	claims   Claimer
	recorder OrderRecorder
	cfg      ConsumerConfig
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewConsumer(ex Exchange, claims Claimer, recorder OrderRecorder, cfg ConsumerConfig, log logrus.FieldLogger) *Consumer {
	if cfg.LeverRate <= 0 {
		cfg.LeverRate = exchange.DefaultLeverRate
	}
	if cfg.OrderPriceType == "" {
		cfg.OrderPriceType = exchange.DefaultPriceType
	}
	if cfg.MarginAccount == "" {
		cfg.MarginAccount = exchange.DefaultMarginAccount
	}
	if cfg.OpenVolume <= 0 {
		cfg.OpenVolume = 1
	}

	return &Consumer{
		exchange: ex,
		claims:   claims,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
		log:      log.WithField("component", "consumer"),
	}
}

// Handle is the queue handler. It returns an error only when a redelivery
// could succeed; everything else is logged and acknowledged.
func (c *Consumer) Handle(ctx context.Context, d queue.Delivery) error {
	var msg models.QueuedMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.log.WithError(err).WithField("body", string(d.Body)).Error("undecodable trade message dropped")
		return nil
	}
	msg.ID = d.ID

	return c.OnMessage(ctx, msg)
}

func (c *Consumer) OnMessage(ctx context.Context, msg models.QueuedMessage) error {
	direction, offset := msg.Action.Direction(), msg.Action.Offset()
	log := c.log.WithFields(logrus.Fields{
		"message_id":      msg.ID,
		"contract_code":   msg.ContractCode,
		"client_order_id": msg.ClientOrderID,
		"direction":       direction,
		"offset":          offset,
	})

	if !msg.Action.IsAvailable() || msg.ContractCode == "" || msg.ClientOrderID == 0 {
		log.WithField("action", msg.Action).Error("invalid trade message dropped")
		return nil
	}

	key := strconv.FormatUint(msg.ClientOrderID, 10)
	state, err := c.claims.Claim(ctx, key)
	if err != nil {
		return errors.Wrap(err, "failed to claim client order id")
	}
	switch state {
	case queue.ClaimDone:
		log.Info("duplicate trade message skipped")
		metrics.OrdersTotal.WithLabelValues(msg.ContractCode, string(direction), string(offset), "duplicate").Inc()
		return nil
	case queue.ClaimPending:
		log.Info("client order id held by an unfinished delivery, retrying later")
		return errors.Wrap(exception.ErrClaimPending, key)
	}

	err = c.execute(ctx, msg, direction, offset, log)

	// claim bookkeeping must land even when ctx was cancelled mid-order
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if errors.Is(err, exception.ErrTransport) {
		if releaseErr := c.claims.Release(settleCtx, key); releaseErr != nil {
			log.WithError(releaseErr).Error("failed to release claim")
		}
		return err
	}

	if completeErr := c.claims.Complete(settleCtx, key); completeErr != nil {
		log.WithError(completeErr).Error("failed to complete claim")
	}
	if err != nil {
		log.WithError(err).Error("trade message not executed")
	}
	return nil
}

func (c *Consumer) execute(ctx context.Context, msg models.QueuedMessage, direction models.Direction, offset models.Offset, log logrus.FieldLogger) error {
	var (
		volume decimal.Decimal
		err    error
	)
	if offset == models.OffsetClose {
		volume, err = c.closeVolume(ctx, msg.ContractCode, direction)
	} else {
		volume, err = c.openVolume(ctx, msg.ContractCode)
	}
	if err != nil {
		return err
	}

	size := volume.IntPart()
	if size <= 0 {
		log.WithField("volume", volume).Info("nothing to trade, order skipped")
		metrics.OrdersTotal.WithLabelValues(msg.ContractCode, string(direction), string(offset), "skipped").Inc()
		return nil
	}

	clientOrderID := msg.ClientOrderID
	req := exchange.CrossOrderRequest{
		ContractCode:  msg.ContractCode,
		Volume:        size,
		Direction:     direction,
		Offset:        offset,
		LeverRate:     c.cfg.LeverRate,
		PriceType:     c.cfg.OrderPriceType,
		ClientOrderID: &clientOrderID,
	}

	order := &models.Order{
		ClientOrderID: msg.ClientOrderID,
		MessageID:     msg.ID,
		ContractCode:  msg.ContractCode,
		Direction:     direction,
		Offset:        offset,
		Volume:        decimal.NewFromInt(size),
		LeverRate:     c.cfg.LeverRate,
		PriceType:     c.cfg.OrderPriceType,
		Timestamp:     c.now().UTC(),
	}

	result, err := c.exchange.PlaceCrossOrder(ctx, req)
	switch {
	case err == nil:
		order.OrderID = result.OrderIDStr
		order.Status = models.OrderStatusPlaced
		log.WithFields(logrus.Fields{"order_id": result.OrderIDStr, "volume": size}).Info("cross order placed")
	case errors.Is(err, exception.ErrTransport):
		metrics.OrdersTotal.WithLabelValues(msg.ContractCode, string(direction), string(offset), "transport").Inc()
		return err
	default:
		order.Status = models.OrderStatusRejected
		order.Reason = err.Error()
	}

	metrics.OrdersTotal.WithLabelValues(msg.ContractCode, string(direction), string(offset), string(order.Status)).Inc()
	if c.recorder != nil {
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
		defer cancel()
		if recErr := c.recorder.SaveOrder(recordCtx, order); recErr != nil {
			log.WithError(recErr).Error("failed to record order")
		}
	}

	if order.Status == models.OrderStatusRejected {
		return err
	}
	return nil
}

// closeVolume is the available size of the position an order in direction closes.
func (c *Consumer) closeVolume(ctx context.Context, contractCode string, direction models.Direction) (decimal.Decimal, error) {
	positions, err := c.exchange.CrossPositionInfo(ctx, contractCode)
	if err != nil {
		return decimal.Zero, err
	}

	held := direction.Opposite()
	for _, p := range positions {
		if p.ContractCode == contractCode && p.Direction == held {
			return p.Available, nil
		}
	}
	return decimal.Zero, nil
}

// openVolume is the configured open size capped by the exchange's open limit.
// It is zero when the margin account has nothing available.
func (c *Consumer) openVolume(ctx context.Context, contractCode string) (decimal.Decimal, error) {
	accounts, err := c.exchange.CrossAccountInfo(ctx, c.cfg.MarginAccount)
	if err != nil {
		return decimal.Zero, err
	}

	var available decimal.Decimal
	for _, a := range accounts {
		if a.MarginAccount == c.cfg.MarginAccount {
			available = a.WithdrawAvailable
			break
		}
	}
	if !available.IsPositive() {
		return decimal.Zero, nil
	}

	limit, err := c.exchange.OrderLimit(ctx, contractCode, c.cfg.OrderPriceType)
	if err != nil {
		return decimal.Zero, err
	}
	row, ok := limit.Find(contractCode)
	if !ok {
		return decimal.Zero, nil
	}

	return decimal.Min(decimal.NewFromInt(c.cfg.OpenVolume), row.OpenLimit), nil
}
