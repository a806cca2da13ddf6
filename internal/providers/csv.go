package providers

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tectoniq/seismograph/internal/domain/series"
)

const csvDateLayout = "2006-01-02"

// CSVStore reads and writes daily bar files, one per symbol, with the
// header date,open,high,low,close,volume. Missing numeric cells become NaN
// (close) or zero (the rest) so mid-series gaps survive a round trip.
type CSVStore struct {
	dir string
}

// NewCSVStore creates the store directory if needed.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create csv store dir %s: %w", dir, err)
	}
	return &CSVStore{dir: dir}, nil
}

// Path returns the file path for a symbol.
func (s *CSVStore) Path(symbol string) string {
	safe := strings.NewReplacer("^", "", ".", "_", "/", "_").Replace(symbol)
	return filepath.Join(s.dir, fmt.Sprintf("%s_1d.csv", safe))
}

// Load reads and validates a symbol's history.
func (s *CSVStore) Load(symbol string) (*series.Series, error) {
	f, err := os.Open(s.Path(symbol))
	if err != nil {
		return nil, fmt.Errorf("csv store: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv store: failed to parse %s: %w", symbol, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("csv store: %s has no data rows", symbol)
	}

	bars := make([]series.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, fmt.Errorf("csv store: %s row %d has %d columns, want 6", symbol, i+2, len(rec))
		}
		date, err := time.Parse(csvDateLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("csv store: %s row %d bad date %q: %w", symbol, i+2, rec[0], err)
		}
		bars = append(bars, series.Bar{
			Date:   date,
			Open:   parseCell(rec[1], 0),
			High:   parseCell(rec[2], 0),
			Low:    parseCell(rec[3], 0),
			Close:  parseCell(rec[4], math.NaN()),
			Volume: parseCell(rec[5], 0),
		})
	}
	return series.New(symbol, bars)
}

// Save writes a symbol's history, replacing any existing file.
func (s *CSVStore) Save(data *series.Series) error {
	f, err := os.Create(s.Path(data.Symbol))
	if err != nil {
		return fmt.Errorf("csv store: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("csv store: %w", err)
	}
	for _, bar := range data.Bars {
		row := []string{
			bar.Date.Format(csvDateLayout),
			formatCell(bar.Open),
			formatCell(bar.High),
			formatCell(bar.Low),
			formatCell(bar.Close),
			formatCell(bar.Volume),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv store: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func parseCell(cell string, empty float64) float64 {
	if cell == "" {
		return empty
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return empty
	}
	return v
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
