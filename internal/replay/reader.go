package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Binance trade dumps switched from millisecond to microsecond timestamps;
// anything above this is treated as microseconds.
const microsecondThreshold = 1e14

const tradeFields = 7

// Trade is one row of a Binance trades dump:
// trade_id,price,qty,quote_qty,time,is_buyer_maker,is_best_match.
type Trade struct {
	ID           int64
	Price        float64
	Qty          float64
	QuoteQty     float64
	Time         time.Time
	IsBuyerMaker bool
	IsBestMatch  bool
}

// CollectFiles returns path itself, or the .csv files in it sorted by name when it is a directory.
func CollectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no .csv files in %s", path)
	}
	return files, nil
}

// ReadTrades calls fn for every trade in r. A leading header row is skipped.
func ReadTrades(r io.Reader, fn func(Trade) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == 1 && isHeader(record) {
			continue
		}
		trade, err := parseTrade(record)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(trade); err != nil {
			return err
		}
	}
}

func isHeader(record []string) bool {
	if len(record) < 2 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	return err != nil
}

func parseTrade(record []string) (Trade, error) {
	if len(record) < tradeFields {
		return Trade{}, fmt.Errorf("expected %d fields, got %d", tradeFields, len(record))
	}
	f := func(i int) string { return strings.TrimSpace(record[i]) }

	id, err := strconv.ParseInt(f(0), 10, 64)
	if err != nil {
		return Trade{}, fmt.Errorf("trade_id: %w", err)
	}
	price, err := strconv.ParseFloat(f(1), 64)
	if err != nil {
		return Trade{}, fmt.Errorf("price: %w", err)
	}
	qty, err := strconv.ParseFloat(f(2), 64)
	if err != nil {
		return Trade{}, fmt.Errorf("qty: %w", err)
	}
	quoteQty, err := strconv.ParseFloat(f(3), 64)
	if err != nil {
		return Trade{}, fmt.Errorf("quote_qty: %w", err)
	}
	ts, err := strconv.ParseInt(f(4), 10, 64)
	if err != nil {
		return Trade{}, fmt.Errorf("time: %w", err)
	}
	buyerMaker, err := strconv.ParseBool(f(5))
	if err != nil {
		return Trade{}, fmt.Errorf("is_buyer_maker: %w", err)
	}
	bestMatch, err := strconv.ParseBool(f(6))
	if err != nil {
		return Trade{}, fmt.Errorf("is_best_match: %w", err)
	}

	return Trade{
		ID:           id,
		Price:        price,
		Qty:          qty,
		QuoteQty:     quoteQty,
		Time:         tradeTime(ts),
		IsBuyerMaker: buyerMaker,
		IsBestMatch:  bestMatch,
	}, nil
}

func tradeTime(ts int64) time.Time {
	if ts > microsecondThreshold {
		return time.UnixMicro(ts).UTC()
	}
	return time.UnixMilli(ts).UTC()
}
