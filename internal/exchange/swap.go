package exchange

import (
	"context"
	"encoding/json"
	"math"
	"net/url"

	"github.com/pkg/errors"

	"notitrade/internal/exception"
)

const (
	DefaultMarginAccount = "USDT"
	DefaultPriceType     = "opponent"
	DefaultLeverRate     = 5
)

// priceTypesWithPrice are the order price types that must carry a price.
var priceTypesWithPrice = map[string]bool{
	"limit":     true,
	"post_only": true,
	"ioc":       true,
	"fok":       true,
}

func (c *Client) CrossAccountInfo(ctx context.Context, marginAccount string) ([]CrossAccount, error) {
	if marginAccount == "" {
		marginAccount = DefaultMarginAccount
	}

	var accounts []CrossAccount
	body := map[string]interface{}{"margin_account": marginAccount}
	if err := c.post(ctx, "linear-swap-api/v1/swap_cross_account_info", body, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) OpenInterest(ctx context.Context, contractCode string) ([]OpenInterest, error) {
	params := url.Values{}
	params.Set("contract_code", contractCode)

	var interest []OpenInterest
	if err := c.get(ctx, "linear-swap-api/v1/swap_open_interest", params, &interest); err != nil {
		return nil, err
	}
	return interest, nil
}

func (c *Client) OrderLimit(ctx context.Context, contractCode, priceType string) (*OrderLimit, error) {
	if priceType == "" {
		priceType = DefaultPriceType
	}

	var limit OrderLimit
	body := map[string]interface{}{
		"contract_code":    contractCode,
		"order_price_type": priceType,
	}
	if err := c.post(ctx, "linear-swap-api/v1/swap_order_limit", body, &limit); err != nil {
		return nil, err
	}
	return &limit, nil
}

func (c *Client) CrossPositionInfo(ctx context.Context, contractCode string) ([]CrossPosition, error) {
	var positions []CrossPosition
	body := map[string]interface{}{"contract_code": contractCode}
	if err := c.post(ctx, "linear-swap-api/v1/swap_cross_position_info", body, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// PlaceCrossOrder submits one cross margin order. It does not retry.
func (c *Client) PlaceCrossOrder(ctx context.Context, req CrossOrderRequest) (*CrossOrderResult, error) {
	body, err := crossOrderBody(req)
	if err != nil {
		return nil, err
	}

	var result CrossOrderResult
	if err := c.post(ctx, "linear-swap-api/v1/swap_cross_order", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func crossOrderBody(req CrossOrderRequest) (map[string]interface{}, error) {
	if req.ContractCode == "" {
		return nil, errors.Wrap(exception.ErrInvalidOrder, "contract code is required")
	}
	if req.Volume <= 0 {
		return nil, errors.Wrapf(exception.ErrInvalidOrder, "volume %d must be positive", req.Volume)
	}
	if !req.Direction.IsAvailable() {
		return nil, errors.Wrapf(exception.ErrInvalidOrder, "direction %q", req.Direction)
	}
	if !req.Offset.IsAvailable() {
		return nil, errors.Wrapf(exception.ErrInvalidOrder, "offset %q", req.Offset)
	}

	leverRate := req.LeverRate
	if leverRate == 0 {
		leverRate = DefaultLeverRate
	}
	if leverRate < 0 {
		return nil, errors.Wrapf(exception.ErrInvalidOrder, "lever rate %d", leverRate)
	}

	priceType := req.PriceType
	if priceType == "" {
		priceType = DefaultPriceType
	}

	body := map[string]interface{}{
		"contract_code":    req.ContractCode,
		"volume":           req.Volume,
		"direction":        string(req.Direction),
		"offset":           string(req.Offset),
		"lever_rate":       leverRate,
		"order_price_type": priceType,
	}

	if req.ClientOrderID != nil {
		if *req.ClientOrderID > math.MaxInt64 {
			return nil, errors.Wrapf(exception.ErrInvalidOrder, "client order id %d exceeds %d", *req.ClientOrderID, int64(math.MaxInt64))
		}
		body["client_order_id"] = int64(*req.ClientOrderID)
	}

	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, errors.Wrapf(exception.ErrInvalidOrder, "price %s must be positive", req.Price)
		}
		body["price"] = json.Number(req.Price.String())
	} else if priceTypesWithPrice[priceType] {
		return nil, errors.Wrapf(exception.ErrInvalidOrder, "order price type %q requires a price", priceType)
	}

	return body, nil
}
