// Package stockmarket serves the /stock-market route group: listed symbols,
// latest quotes and price history. Market data comes from a Service supplied
// by the deployment; quotes may be cached in Redis.
package stockmarket

import (
	"context"
	"fmt"
	"time"

	"ctb/api"
)

// Symbol is a tradable instrument.
type Symbol struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// Quote is the latest price of a symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Supported history intervals.
const (
	Interval1m  = "1m"
	Interval5m  = "5m"
	Interval15m = "15m"
	Interval1h  = "1h"
	Interval1d  = "1d"
	Interval1w  = "1w"
)

// HistoryQuery selects a range of candles for a symbol.
type HistoryQuery struct {
	Symbol   string    `json:"symbol" validate:"required,min=1,max=12,alphanum"`
	From     time.Time `json:"from" validate:"required"`
	To       time.Time `json:"to" validate:"required,gtfield=From"`
	Interval string    `json:"interval" validate:"required,oneof=1m 5m 15m 1h 1d 1w"`
}

// Service provides market data. Implementations return errors wrapping
// api.ErrNotFound for unknown symbols.
type Service interface {
	ListSymbols(ctx context.Context) ([]Symbol, error)
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetHistory(ctx context.Context, q HistoryQuery) ([]Candle, error)
}

// NotConfigured is the Service used when no market data backend is wired.
type NotConfigured struct{}

func (NotConfigured) ListSymbols(ctx context.Context) ([]Symbol, error) {
	return nil, fmt.Errorf("stock-market list symbols: %w", api.ErrNotConfigured)
}

func (NotConfigured) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	return nil, fmt.Errorf("stock-market quote %s: %w", symbol, api.ErrNotConfigured)
}

func (NotConfigured) GetHistory(ctx context.Context, q HistoryQuery) ([]Candle, error) {
	return nil, fmt.Errorf("stock-market history %s: %w", q.Symbol, api.ErrNotConfigured)
}
