package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/tectoniq/seismograph/internal/domain/series"
)

// HTTPProvider fetches daily bars from a JSON data service. Requests pass a
// token-bucket rate limiter and a circuit breaker, so a misbehaving
// upstream degrades to fast failures instead of pile-ups.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// barDTO is the wire shape of one daily bar.
type barDTO struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// NewHTTPProvider builds a provider for the given base URL with the given
// request budget.
func NewHTTPProvider(baseURL string, requestsSec float64, burst int) *HTTPProvider {
	settings := gobreaker.Settings{
		Name:    "bars-upstream",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("provider circuit state change")
		},
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(requestsSec), burst),
	}
}

// FetchDaily retrieves and validates the full daily history for symbol.
func (p *HTTPProvider) FetchDaily(ctx context.Context, symbol string) (*series.Series, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars for %s: %w", symbol, err)
	}
	return result.(*series.Series), nil
}

func (p *HTTPProvider) fetch(ctx context.Context, symbol string) (*series.Series, error) {
	u, err := url.Parse(p.baseURL + "/api/v1/daily")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("symbol", symbol)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}

	var dtos []barDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}

	bars := make([]series.Bar, 0, len(dtos))
	for i, dto := range dtos {
		date, err := time.Parse("2006-01-02", dto.Date)
		if err != nil {
			return nil, fmt.Errorf("bar %d: bad date %q: %w", i, dto.Date, err)
		}
		bars = append(bars, series.Bar{
			Date:   date,
			Open:   dto.Open,
			High:   dto.High,
			Low:    dto.Low,
			Close:  dto.Close,
			Volume: dto.Volume,
		})
	}

	s, err := series.New(symbol, bars)
	if err != nil {
		// Date-order violations from upstream are a contract breach and
		// rejected before any computation sees them.
		return nil, fmt.Errorf("upstream series invalid: %w", err)
	}
	log.Debug().Str("symbol", symbol).Int("bars", s.Len()).Msg("fetched daily bars")
	return s, nil
}
