package exchange

import (
	"github.com/shopspring/decimal"

	"notitrade/internal/models"
)

type Account struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	State   string `json:"state"`
}

type Balance struct {
	ID    int64         `json:"id"`
	Type  string        `json:"type"`
	State string        `json:"state"`
	List  []BalanceItem `json:"list"`
}

type BalanceItem struct {
	Currency string          `json:"currency"`
	Type     string          `json:"type"`
	Balance  decimal.Decimal `json:"balance"`
}

// CrossAccount is one cross margin account; contract details are omitted.
type CrossAccount struct {
	MarginMode        string          `json:"margin_mode"`
	MarginAccount     string          `json:"margin_account"`
	MarginAsset       string          `json:"margin_asset"`
	MarginBalance     decimal.Decimal `json:"margin_balance"`
	MarginStatic      decimal.Decimal `json:"margin_static"`
	MarginPosition    decimal.Decimal `json:"margin_position"`
	MarginFrozen      decimal.Decimal `json:"margin_frozen"`
	ProfitReal        decimal.Decimal `json:"profit_real"`
	ProfitUnreal      decimal.Decimal `json:"profit_unreal"`
	WithdrawAvailable decimal.Decimal `json:"withdraw_available"`
	RiskRate          decimal.Decimal `json:"risk_rate"`
}

type OpenInterest struct {
	Symbol        string          `json:"symbol"`
	ContractCode  string          `json:"contract_code"`
	Volume        decimal.Decimal `json:"volume"`
	Amount        decimal.Decimal `json:"amount"`
	Value         decimal.Decimal `json:"value"`
	TradeAmount   decimal.Decimal `json:"trade_amount"`
	TradeVolume   decimal.Decimal `json:"trade_volume"`
	TradeTurnover decimal.Decimal `json:"trade_turnover"`
	BusinessType  string          `json:"business_type"`
	Pair          string          `json:"pair"`
	ContractType  string          `json:"contract_type"`
}

type OrderLimit struct {
	OrderPriceType string               `json:"order_price_type"`
	List           []ContractOrderLimit `json:"list"`
}

type ContractOrderLimit struct {
	Symbol       string          `json:"symbol"`
	ContractCode string          `json:"contract_code"`
	OpenLimit    decimal.Decimal `json:"open_limit"`
	CloseLimit   decimal.Decimal `json:"close_limit"`
}

// Find returns the limit row for contractCode.
func (l OrderLimit) Find(contractCode string) (ContractOrderLimit, bool) {
	for _, row := range l.List {
		if row.ContractCode == contractCode {
			return row, true
		}
	}
	return ContractOrderLimit{}, false
}

type CrossPosition struct {
	Symbol         string           `json:"symbol"`
	ContractCode   string           `json:"contract_code"`
	Volume         decimal.Decimal  `json:"volume"`
	Available      decimal.Decimal  `json:"available"`
	Frozen         decimal.Decimal  `json:"frozen"`
	CostOpen       decimal.Decimal  `json:"cost_open"`
	CostHold       decimal.Decimal  `json:"cost_hold"`
	ProfitUnreal   decimal.Decimal  `json:"profit_unreal"`
	ProfitRate     decimal.Decimal  `json:"profit_rate"`
	Profit         decimal.Decimal  `json:"profit"`
	PositionMargin decimal.Decimal  `json:"position_margin"`
	LastPrice      decimal.Decimal  `json:"last_price"`
	LeverRate      int              `json:"lever_rate"`
	Direction      models.Direction `json:"direction"`
	MarginMode     string           `json:"margin_mode"`
	MarginAccount  string           `json:"margin_account"`
}

// CrossOrderRequest is the input of PlaceCrossOrder. Price and ClientOrderID
// are independent optional fields.
type CrossOrderRequest struct {
	ContractCode  string
	Volume        int64
	Direction     models.Direction
	Offset        models.Offset
	LeverRate     int
	PriceType     string
	Price         *decimal.Decimal
	ClientOrderID *uint64
}

type CrossOrderResult struct {
	OrderID       int64  `json:"order_id"`
	OrderIDStr    string `json:"order_id_str"`
	ClientOrderID int64  `json:"client_order_id"`
}
