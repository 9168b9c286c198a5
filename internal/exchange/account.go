package exchange

import (
	"context"
	"fmt"
)

// ListAccounts returns the spot account list.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.get(ctx, "v1/account/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) GetBalance(ctx context.Context, accountID int64) (*Balance, error) {
	var balance Balance
	if err := c.get(ctx, fmt.Sprintf("v1/account/accounts/%d/balance", accountID), nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}
