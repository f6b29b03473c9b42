package dataflows

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// YahooFinanceClient fetches quotes and daily bars from Yahoo Finance.
type YahooFinanceClient struct {
	cache *CacheManager
}

func NewYahooFinanceClient(cacheDir string, cacheEnabled bool) *YahooFinanceClient {
	return &YahooFinanceClient{
		cache: NewCacheManager(filepath.Join(cacheDir, "yahoo_finance"), 24*time.Hour, cacheEnabled),
	}
}

// GetQuote returns the latest quote for symbol as a single bar.
func (yf *YahooFinanceClient) GetQuote(symbol string) (*PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var cached PriceBar
	if yf.cache.Get("yahoo", "quote", symbol, &cached) {
		return &cached, nil
	}

	var result *PriceBar
	err := withRetry(3, func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("get quote for %s: %w", symbol, err)
		}
		result = &PriceBar{
			Symbol:   symbol,
			Date:     time.Now(),
			Open:     decimal.NewFromFloat(q.RegularMarketOpen),
			High:     decimal.NewFromFloat(q.RegularMarketDayHigh),
			Low:      decimal.NewFromFloat(q.RegularMarketDayLow),
			Close:    decimal.NewFromFloat(q.RegularMarketPrice),
			AdjClose: decimal.NewFromFloat(q.RegularMarketPrice),
			Volume:   int64(q.RegularMarketVolume),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	yf.cache.Set("yahoo", "quote", symbol, result)
	return result, nil
}

// GetHistory returns daily bars in [start, end].
func (yf *YahooFinanceClient) GetHistory(symbol string, start, end time.Time) ([]*PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]string{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}
	var cached []*PriceBar
	if yf.cache.Get("yahoo", "history", cacheKey, &cached) {
		return cached, nil
	}

	var result []*PriceBar
	err := withRetry(3, func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}
		iter := chart.Get(params)

		result = result[:0]
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, &PriceBar{
				Symbol:   symbol,
				Date:     time.Unix(int64(bar.Timestamp), 0),
				Open:     bar.Open,
				High:     bar.High,
				Low:      bar.Low,
				Close:    bar.Close,
				AdjClose: bar.AdjClose,
				Volume:   int64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("get history for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	yf.cache.Set("yahoo", "history", cacheKey, result)
	return result, nil
}

// GetWindow returns up to days of daily bars ending at end.
func (yf *YahooFinanceClient) GetWindow(symbol string, end time.Time, days int) ([]*PriceBar, error) {
	if days <= 0 {
		days = 30
	}
	start := end.AddDate(0, 0, -days)
	return yf.GetHistory(symbol, start, end)
}
