package signal

import (
	"fmt"
	"regexp"

	"notitrade/internal/exception"
	"notitrade/internal/models"
)

// fieldCount is the number of bracketed fields in a vendor notification:
// strategy, action, price, symbol.
const fieldCount = 4

var fieldPattern = regexp.MustCompile(`「(.*?)」`)

// ParseError reports a notification that does not match the vendor template.
type ParseError struct {
	Input string
	Found int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed notification: want %d bracketed fields, found %d", fieldCount, e.Found)
}

func (e *ParseError) Unwrap() error {
	return exception.ErrMalformedNotification
}

// Parse extracts a TradeSignal from the bracketed fields of text.
// Text outside the brackets is ignored; fields are taken verbatim.
func Parse(text string) (models.TradeSignal, error) {
	matches := fieldPattern.FindAllStringSubmatch(text, -1)
	if len(matches) != fieldCount {
		return models.TradeSignal{}, &ParseError{Input: text, Found: len(matches)}
	}

	return models.TradeSignal{
		Strategy:  matches[0][1],
		Action:    models.Action(matches[1][1]),
		Price:     matches[2][1],
		RawSymbol: matches[3][1],
	}, nil
}
