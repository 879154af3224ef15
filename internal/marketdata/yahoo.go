package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"paper-arena/internal/errors"
	"paper-arena/internal/models"
	"paper-arena/pkg/utils"
)

const moversCount = 5

// Client fetches quotes and candles from the Yahoo Finance chart API and
// derives analysis locally. Lookups are rate limited and retried with
// backoff; results are cached briefly so one round costs one fetch per
// symbol at most.
type Client struct {
	rest     *resty.Client
	limiter  *utils.RateLimiter
	retry    utils.RetryConfig
	cache    *ttlCache
	universe []string
	log      zerolog.Logger
}

// ClientConfig configures a market-data Client.
type ClientConfig struct {
	BaseURL       string
	Universe      []string
	CacheTTL      time.Duration
	RatePerSecond float64
	MaxRetries    int
	Timeout       time.Duration
}

// NewClient creates a Yahoo-backed market-data client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	retryCfg := utils.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; paper-arena/1.0)")

	return &Client{
		rest:     rest,
		limiter:  utils.NewRateLimiter(cfg.RatePerSecond, 5),
		retry:    retryCfg,
		cache:    newTTLCache(cfg.CacheTTL),
		universe: cfg.Universe,
		log:      logger,
	}
}

// yahooChart is the response shape of the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetQuote returns the current quote for one symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if v, ok := c.cache.get("quote:" + symbol); ok {
		return v.(*models.Quote), nil
	}

	_, quote, err := c.fetchChart(ctx, symbol, "5d")
	if err != nil {
		return nil, err
	}
	c.cache.set("quote:"+symbol, quote)
	return quote, nil
}

// AnalyzeMultiple derives technical analysis for each symbol. A symbol that
// cannot be fetched is simply absent from the result; the round tolerates
// gaps.
func (c *Client) AnalyzeMultiple(ctx context.Context, symbols []string) (map[string]*models.Analysis, error) {
	out := make(map[string]*models.Analysis, len(symbols))
	for _, sym := range symbols {
		if v, ok := c.cache.get("analysis:" + sym); ok {
			out[sym] = v.(*models.Analysis)
			continue
		}
		candles, _, err := c.fetchChart(ctx, sym, "3mo")
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", sym).Msg("analysis fetch failed")
			continue
		}
		a := ComputeAnalysis(sym, candles)
		c.cache.set("analysis:"+sym, a)
		out[sym] = a
	}
	if len(out) == 0 && len(symbols) > 0 {
		return nil, errors.ErrUpstreamUnavailable
	}
	return out, nil
}

// GetTopMovers ranks the configured universe by daily change percent.
func (c *Client) GetTopMovers(ctx context.Context) (*models.Movers, error) {
	var quotes []models.Quote
	for _, sym := range c.universe {
		q, err := c.GetQuote(ctx, sym)
		if err != nil {
			c.log.Debug().Err(err).Str("symbol", sym).Msg("mover quote skipped")
			continue
		}
		quotes = append(quotes, *q)
	}
	if len(quotes) == 0 {
		return nil, errors.ErrUpstreamUnavailable
	}

	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].ChangePercent > quotes[j].ChangePercent
	})

	m := &models.Movers{}
	for i := 0; i < len(quotes) && i < moversCount; i++ {
		m.Gainers = append(m.Gainers, quotes[i])
	}
	for i := len(quotes) - 1; i >= 0 && len(m.Losers) < moversCount; i-- {
		m.Losers = append(m.Losers, quotes[i])
	}
	return m, nil
}

// fetchChart fetches daily candles for a range and builds the latest quote.
func (c *Client) fetchChart(ctx context.Context, symbol, rng string) ([]Candle, *models.Quote, error) {
	type result struct {
		candles []Candle
		quote   *models.Quote
	}

	res, err := utils.RetryWithResult(ctx, c.retry, func() (result, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return result{}, err
		}

		var chart yahooChart
		resp, err := c.rest.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"range":    rng,
				"interval": "1d",
			}).
			SetResult(&chart).
			Get("/v8/finance/chart/" + symbol)
		if err != nil {
			return result{}, errors.Wrap(errors.ErrUpstreamUnavailable, err.Error())
		}
		if resp.StatusCode() == http.StatusTooManyRequests {
			return result{}, errors.ErrRateLimited
		}
		if resp.IsError() {
			return result{}, errors.NewDataError(symbol, fmt.Sprintf("status %d", resp.StatusCode()), errors.ErrUpstreamUnavailable)
		}
		if chart.Chart.Error != nil || len(chart.Chart.Result) == 0 {
			return result{}, errors.NewDataError(symbol, "empty chart result", errors.ErrQuoteUnavailable)
		}

		r := chart.Chart.Result[0]
		if len(r.Indicators.Quote) == 0 {
			return result{}, errors.NewDataError(symbol, "no quote series", errors.ErrQuoteUnavailable)
		}
		series := r.Indicators.Quote[0]

		var candles []Candle
		for i, ts := range r.Timestamp {
			if i >= len(series.Close) || series.Close[i] == nil {
				continue
			}
			candle := Candle{
				Timestamp: time.Unix(ts, 0),
				Close:     *series.Close[i],
			}
			if i < len(series.Open) && series.Open[i] != nil {
				candle.Open = *series.Open[i]
			}
			if i < len(series.High) && series.High[i] != nil {
				candle.High = *series.High[i]
			}
			if i < len(series.Low) && series.Low[i] != nil {
				candle.Low = *series.Low[i]
			}
			if i < len(series.Volume) && series.Volume[i] != nil {
				candle.Volume = *series.Volume[i]
			}
			candles = append(candles, candle)
		}
		if len(candles) == 0 {
			return result{}, errors.NewDataError(symbol, "no usable candles", errors.ErrQuoteUnavailable)
		}

		last := candles[len(candles)-1]
		price := r.Meta.RegularMarketPrice
		if price <= 0 {
			price = last.Close
		}
		prevClose := last.Close
		if len(candles) > 1 {
			prevClose = candles[len(candles)-2].Close
		}

		q := &models.Quote{
			Symbol:    symbol,
			Price:     price,
			Open:      last.Open,
			High:      last.High,
			Low:       last.Low,
			PrevClose: prevClose,
			Volume:    last.Volume,
			Change:    price - prevClose,
			Timestamp: last.Timestamp,
		}
		if prevClose > 0 {
			q.ChangePercent = (price - prevClose) / prevClose * 100
		}
		return result{candles: candles, quote: q}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res.candles, res.quote, nil
}

var _ Provider = (*Client)(nil)
