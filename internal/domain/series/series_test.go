package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNewRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		bars    []Bar
		wantErr error
	}{
		{
			name:    "empty_series",
			bars:    nil,
			wantErr: ErrEmptySeries,
		},
		{
			name: "duplicate_date",
			bars: []Bar{
				{Date: day(0), Close: 100},
				{Date: day(0), Close: 101},
			},
			wantErr: ErrNonMonotonicDates,
		},
		{
			name: "out_of_order",
			bars: []Bar{
				{Date: day(2), Close: 100},
				{Date: day(1), Close: 101},
			},
			wantErr: ErrNonMonotonicDates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("TEST", tt.bars)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewAcceptsCalendarGaps(t *testing.T) {
	s, err := New("TEST", []Bar{
		{Date: day(0), Close: 100},
		{Date: day(1), Close: 101},
		{Date: day(4), Close: 102}, // weekend skipped
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
}

func TestReturns(t *testing.T) {
	closes := []float64{100, 110, 99}
	rets := Returns(closes)

	assert.True(t, math.IsNaN(rets[0]))
	assert.InDelta(t, 0.10, rets[1], 1e-9)
	assert.InDelta(t, -0.10, rets[2], 1e-9)
}

func TestReturnsSkipsGaps(t *testing.T) {
	closes := []float64{100, math.NaN(), 102}
	rets := Returns(closes)

	assert.True(t, math.IsNaN(rets[1]))
	assert.True(t, math.IsNaN(rets[2]))
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	sma := SMA(values, 3)

	assert.True(t, math.IsNaN(sma[0]))
	assert.True(t, math.IsNaN(sma[1]))
	assert.InDelta(t, 2.0, sma[2], 1e-9)
	assert.InDelta(t, 3.0, sma[3], 1e-9)
	assert.InDelta(t, 4.0, sma[4], 1e-9)
}

func TestRollingStd(t *testing.T) {
	// Constant series has zero deviation
	flat := []float64{2, 2, 2, 2}
	std := RollingStd(flat, 3)
	assert.InDelta(t, 0.0, std[2], 1e-9)
	assert.InDelta(t, 0.0, std[3], 1e-9)

	// Known sample std of {1,2,3} is 1
	std = RollingStd([]float64{1, 2, 3}, 3)
	assert.InDelta(t, 1.0, std[2], 1e-9)
}

func TestGapBarDetection(t *testing.T) {
	assert.True(t, Bar{Date: day(0), Close: math.NaN()}.IsGap())
	assert.True(t, Bar{Date: day(0), Close: 0}.IsGap())
	assert.False(t, Bar{Date: day(0), Close: 42.5}.IsGap())
}
