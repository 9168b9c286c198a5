package signal

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notitrade/internal/exception"
	"notitrade/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.TradeSignal
	}{
		{
			name: "bare fields",
			text: "「TrendBot」「做多」「1.23」「XRP/USDT」",
			want: models.TradeSignal{Strategy: "TrendBot", Action: models.ActionOpenLong, Price: "1.23", RawSymbol: "XRP/USDT"},
		},
		{
			name: "surrounding text",
			text: "【币世界】您订阅的策略「TrendBot」发出「平空」信号，价格「0.5021」，交易对「XRP/USDT」，请注意风险",
			want: models.TradeSignal{Strategy: "TrendBot", Action: models.ActionCloseShort, Price: "0.5021", RawSymbol: "XRP/USDT"},
		},
		{
			name: "empty fields kept verbatim",
			text: "「」「做空」「」「ETC/USDT」",
			want: models.TradeSignal{Strategy: "", Action: models.ActionOpenShort, Price: "", RawSymbol: "ETC/USDT"},
		},
		{
			name: "price is not validated",
			text: "「X」「做多」「n/a」「XRP/USDT」",
			want: models.TradeSignal{Strategy: "X", Action: models.ActionOpenLong, Price: "n/a", RawSymbol: "XRP/USDT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		found int
	}{
		{"empty", "", 0},
		{"plain text", "XRP long at 1.23", 0},
		{"three fields", "「TrendBot」「做多」「1.23」", 3},
		{"five fields", "「TrendBot」「做多」「1.23」「XRP/USDT」「extra」", 5},
		{"unclosed bracket", "「TrendBot」「做多」「1.23」「XRP/USDT", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, exception.ErrMalformedNotification))

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.found, parseErr.Found)
			assert.Equal(t, tt.text, parseErr.Input)
		})
	}
}
