package signal

import (
	"fmt"
	"strings"

	"notitrade/internal/exception"
	"notitrade/internal/models"
)

// Ticker is an asset the notification vendor reports on.
type Ticker string

const (
	TickerXRP Ticker = "XRP"
	TickerETC Ticker = "ETC"
)

// Instrument is one row of the signal table.
type Instrument struct {
	Side           models.OrderSide
	ContractSymbol string
}

// Asset is the per-ticker signal table.
type Asset struct {
	ContractCode string
	Actions      map[models.Action]Instrument
}

// Table maps tickers to their asset rows. Tickers not present are unsupported.
type Table map[Ticker]Asset

// DefaultTickers is the scan order; the first ticker found in a symbol wins.
var DefaultTickers = []Ticker{TickerXRP, TickerETC}

// DefaultTable is the set of supported (asset, action) combinations.
var DefaultTable = Table{
	TickerXRP: {
		ContractCode: "XRP-USDT",
		Actions: map[models.Action]Instrument{
			models.ActionOpenLong:   {Side: models.OrderSideBuy, ContractSymbol: "xrplsusdt"},
			models.ActionCloseLong:  {Side: models.OrderSideSell, ContractSymbol: "xrp3lusdt"},
			models.ActionOpenShort:  {Side: models.OrderSideBuy, ContractSymbol: "xrp3susdt"},
			models.ActionCloseShort: {Side: models.OrderSideSell, ContractSymbol: "xrp3susdt"},
		},
	},
}

// MappingError reports an (asset, action) pair the table does not cover.
type MappingError struct {
	Action    models.Action
	RawSymbol string
	Ticker    Ticker
}

func (e *MappingError) Error() string {
	if e.Ticker == "" {
		return fmt.Sprintf("unsupported instrument: no known ticker in symbol %q", e.RawSymbol)
	}
	return fmt.Sprintf("unsupported instrument: action %q not supported for %s", e.Action, e.Ticker)
}

func (e *MappingError) Unwrap() error {
	return exception.ErrUnsupportedInstrument
}

// Mapping is the resolved order for a signal.
type Mapping struct {
	Ticker       Ticker
	ContractCode string
	Intent       models.OrderIntent
}

type Mapper struct {
	exchange string
	tickers  []Ticker
	table    Table
}

func NewMapper(exchange string, tickers []Ticker, table Table) *Mapper {
	return &Mapper{
		exchange: exchange,
		tickers:  tickers,
		table:    table,
	}
}

func NewDefaultMapper() *Mapper {
	return NewMapper(models.ExchangeHuobi, DefaultTickers, DefaultTable)
}

// Map resolves action on rawSymbol. Only the first ticker whose "<TICKER>/"
// appears in rawSymbol is consulted.
func (m *Mapper) Map(action models.Action, rawSymbol string) (Mapping, error) {
	ticker, ok := m.match(rawSymbol)
	if !ok {
		return Mapping{}, &MappingError{Action: action, RawSymbol: rawSymbol}
	}

	asset, ok := m.table[ticker]
	if !ok {
		return Mapping{}, &MappingError{Action: action, RawSymbol: rawSymbol, Ticker: ticker}
	}

	instrument, ok := asset.Actions[action]
	if !ok {
		return Mapping{}, &MappingError{Action: action, RawSymbol: rawSymbol, Ticker: ticker}
	}

	return Mapping{
		Ticker:       ticker,
		ContractCode: asset.ContractCode,
		Intent: models.OrderIntent{
			Exchange:       m.exchange,
			Side:           instrument.Side,
			ContractSymbol: instrument.ContractSymbol,
		},
	}, nil
}

func (m *Mapper) match(rawSymbol string) (Ticker, bool) {
	for _, ticker := range m.tickers {
		if strings.Contains(rawSymbol, string(ticker)+"/") {
			return ticker, true
		}
	}
	return "", false
}
