package series

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNonMonotonicDates is returned when bar dates are out of order or duplicated
	ErrNonMonotonicDates = errors.New("bar dates must be strictly increasing")
	// ErrEmptySeries is returned when a series has no bars at all
	ErrEmptySeries = errors.New("price series is empty")
)

// Bar is a single daily OHLC observation. Only Close is required by the
// core; Open/High/Low/Volume travel along for reporting collaborators.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open,omitempty"`
	High   float64   `json:"high,omitempty"`
	Low    float64   `json:"low,omitempty"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// IsGap reports whether the bar carries no usable close (missing or NaN).
// Calendar gaps (weekends, holidays) are simply absent bars and not gaps.
func (b Bar) IsGap() bool {
	return math.IsNaN(b.Close) || b.Close <= 0
}

// Series is an ordered daily price history for one symbol.
type Series struct {
	Symbol string
	Bars   []Bar
}

// New validates the caller contract and wraps the bars. Dates must be
// strictly increasing; gaps between dates are fine.
func New(symbol string, bars []Bar) (*Series, error) {
	if len(bars) == 0 {
		return nil, ErrEmptySeries
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return nil, fmt.Errorf("%w: bar %d (%s) not after bar %d (%s)",
				ErrNonMonotonicDates, i, bars[i].Date.Format("2006-01-02"),
				i-1, bars[i-1].Date.Format("2006-01-02"))
		}
	}
	return &Series{Symbol: symbol, Bars: bars}, nil
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.Bars) }

// Closes returns the close column as a slice. Gap bars come through as NaN
// so downstream windows can skip them explicitly.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		if b.IsGap() {
			out[i] = math.NaN()
		} else {
			out[i] = b.Close
		}
	}
	return out
}

// Returns computes simple daily returns close[i]/close[i-1] - 1. Index 0 and
// any index adjacent to a gap bar is NaN.
func Returns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(out) > 0 {
		out[0] = math.NaN()
	}
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cur/prev - 1
	}
	return out
}

// SMA computes the simple moving average of the trailing window ending at
// each index, inclusive. Indexes with fewer than window observations, or
// with any NaN inside the window, yield NaN.
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		valid := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				valid = false
				break
			}
			sum += values[j]
		}
		if valid {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// RollingStd computes the sample standard deviation over the trailing window
// ending at each index, inclusive. NaN inputs inside the window are skipped;
// fewer than two valid observations yields NaN.
func RollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 1 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		var sum, sumSq float64
		n := 0
		for j := i - window + 1; j <= i; j++ {
			v := values[j]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			sumSq += v * v
			n++
		}
		if n < 2 {
			continue
		}
		mean := sum / float64(n)
		variance := (sumSq - sum*mean) / float64(n-1)
		if variance < 0 {
			variance = 0
		}
		out[i] = math.Sqrt(variance)
	}
	return out
}
