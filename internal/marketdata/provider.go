// Package marketdata supplies quotes and derived technical analysis to the
// arena. The arena treats it as an external collaborator: any lookup may
// fail or throttle, and callers fall back rather than abort.
package marketdata

import (
	"context"
	"time"

	"paper-arena/internal/models"
)

// Provider is the market-data contract the arena consumes.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	AnalyzeMultiple(ctx context.Context, symbols []string) (map[string]*models.Analysis, error)
	GetTopMovers(ctx context.Context) (*models.Movers, error)
}

// Candle is one OHLCV bar.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}
