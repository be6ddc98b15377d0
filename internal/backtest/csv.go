package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tessera/internal/market"
)

// LoadCSV reads candles from a CSV file with columns
// timestamp,open,high,low,close,volume. Timestamps are unix milliseconds
// (unix seconds are detected and scaled). A header row is skipped when the
// first field is not numeric.
func LoadCSV(path string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backtest: opening %s failed: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses candle rows from r; see LoadCSV for the format.
func ReadCSV(r io.Reader) ([]market.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var candles []market.Candle
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("backtest: csv line %d: %w", line+1, err)
		}
		line++
		if len(record) < 6 {
			return nil, fmt.Errorf("backtest: csv line %d: want 6 columns, got %d", line, len(record))
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("backtest: csv line %d: bad timestamp %q", line, record[0])
		}
		// Heuristic: unix seconds are 10 digits well past 2001.
		if ts < 1e12 {
			ts *= 1000
		}
		fields := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("backtest: csv line %d column %d: %w", line, i+2, err)
			}
			fields[i] = v
		}
		candles = append(candles, market.Candle{
			OpenTime:  ts,
			CloseTime: ts,
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
		})
	}
	if err := market.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	return candles, nil
}
