package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cryptocom-momo-bot-go/internal/models"
	"github.com/shopspring/decimal"
)

const isoSeconds = "2006-01-02T15:04:05-07:00"

var csvHeader = []string{"ts_iso", "symbol", "action", "side", "price", "qty", "reason", "pnl_usdt"}

// CSVLog appends trade records to a CSV file, writing the header when the file is new or empty.
type CSVLog struct {
	mu   sync.Mutex
	path string
}

// NewCSVLog creates a new CSVLog writing to path.
func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

// RecordTrade implements execution.TradeSink.
func (l *CSVLog) RecordTrade(_ context.Context, rec models.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create trade log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open trade log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat trade log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write trade log header: %w", err)
		}
	}
	if err := w.Write(Row(rec)); err != nil {
		return fmt.Errorf("failed to write trade row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Row renders a record in trade log column order.
func Row(rec models.TradeRecord) []string {
	pnl := ""
	if rec.PnL != nil {
		pnl = fixed(*rec.PnL)
	}
	return []string{
		rec.Timestamp.UTC().Format(isoSeconds),
		rec.Symbol,
		rec.Action,
		string(rec.Side),
		fixed(rec.Price),
		fixed(rec.Quantity),
		rec.Reason,
		pnl,
	}
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(8)
}
