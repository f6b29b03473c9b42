package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/lumatrade/council/internal/dataflows"
)

type quoteArgs struct {
	Symbol string `json:"symbol"`
}

type quoteResult struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Price  string `json:"price"`
	Volume int64  `json:"volume"`
}

// newQuoteTool exposes the latest quote, for analysts that need the
// current price without a history window.
func newQuoteTool(yahoo *dataflows.YahooFinanceClient) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_quote",
			Desc: "Get the latest market quote for a stock symbol",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     "string",
					Desc:     "The stock symbol, e.g. AAPL",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input quoteArgs) (*quoteResult, error) {
			if input.Symbol == "" {
				return nil, fmt.Errorf("symbol parameter is required")
			}
			bar, err := yahoo.GetQuote(input.Symbol)
			if err != nil {
				return nil, err
			}
			return &quoteResult{
				Symbol: bar.Symbol,
				Date:   bar.Date.Format("2006-01-02"),
				Open:   bar.Open.StringFixed(2),
				High:   bar.High.StringFixed(2),
				Low:    bar.Low.StringFixed(2),
				Price:  bar.Close.StringFixed(2),
				Volume: bar.Volume,
			}, nil
		},
	)
}

type marketDataArgs struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Days   int    `json:"days"`
}

type marketDataResult struct {
	Symbol string             `json:"symbol"`
	Bars   []marketBarSummary `json:"bars"`
}

type marketBarSummary struct {
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume int64  `json:"volume"`
}

// newMarketDataTool exposes daily OHLCV history to the market analyst.
func newMarketDataTool(yahoo *dataflows.YahooFinanceClient) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_market_data",
			Desc: "Get daily OHLCV price history for a stock symbol ending at a given date",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     "string",
					Desc:     "The stock symbol, e.g. AAPL",
					Required: true,
				},
				"date": {
					Type:     "string",
					Desc:     "End date in YYYY-MM-DD format (defaults to today)",
					Required: false,
				},
				"days": {
					Type:     "integer",
					Desc:     "Number of trading days to retrieve (default 30)",
					Required: false,
				},
			}),
		},
		func(ctx context.Context, input marketDataArgs) (*marketDataResult, error) {
			if input.Symbol == "" {
				return nil, fmt.Errorf("symbol parameter is required")
			}
			end := time.Now()
			if input.Date != "" {
				parsed, err := time.Parse("2006-01-02", input.Date)
				if err != nil {
					return nil, fmt.Errorf("invalid date %q: %w", input.Date, err)
				}
				end = parsed
			}

			bars, err := yahoo.GetWindow(input.Symbol, end, input.Days)
			if err != nil {
				return nil, err
			}
			if len(bars) == 0 {
				return nil, fmt.Errorf("no price data for %s", input.Symbol)
			}

			out := &marketDataResult{Symbol: dataflows.NormalizeSymbol(input.Symbol)}
			for _, b := range bars {
				out.Bars = append(out.Bars, marketBarSummary{
					Date:   b.Date.Format("2006-01-02"),
					Open:   b.Open.StringFixed(2),
					High:   b.High.StringFixed(2),
					Low:    b.Low.StringFixed(2),
					Close:  b.Close.StringFixed(2),
					Volume: b.Volume,
				})
			}
			return out, nil
		},
	)
}
