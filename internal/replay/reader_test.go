package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string) ([]Trade, error) {
	t.Helper()
	var trades []Trade
	err := ReadTrades(strings.NewReader(input), func(tr Trade) error {
		trades = append(trades, tr)
		return nil
	})
	return trades, err
}

func TestReadTrades(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		count   int
		wantErr bool
	}{
		{"no header", "1,100.5,0.1,10.05,1696118400000,True,True\n2,101,0.2,20.2,1696118401000,False,True\n", 2, false},
		{"header", "trade_id,price,qty,quote_qty,time,is_buyer_maker,is_best_match\n1,100.5,0.1,10.05,1696118400000,true,true\n", 1, false},
		{"empty", "", 0, false},
		{"short row", "1,100.5,0.1\n", 0, true},
		{"bad price", "1,100.5,0.1,10.05,1696118400000,True,True\n2,abc,0.1,1,1696118400000,True,True\n", 1, true},
		{"bad flag", "1,100.5,0.1,10.05,1696118400000,maybe,True\n", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trades, err := collect(t, tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, trades, tc.count)
		})
	}
}

func TestReadTrades_Fields(t *testing.T) {
	trades, err := collect(t, "7,100.5,0.1,10.05,1696118400123,True,False\n")

	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, Trade{
		ID:           7,
		Price:        100.5,
		Qty:          0.1,
		QuoteQty:     10.05,
		Time:         time.Date(2023, 10, 1, 0, 0, 0, 123_000_000, time.UTC),
		IsBuyerMaker: true,
		IsBestMatch:  false,
	}, trades[0])
}

func TestReadTrades_MicrosecondTimestamps(t *testing.T) {
	trades, err := collect(t, "1,100,1,100,1735689600000000,True,True\n")

	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), trades[0].Time)
}

func TestReadTrades_ErrorReportsLine(t *testing.T) {
	_, err := collect(t, "header,price,qty,quote,time,m,b\n1,100,1,100,1,True,True\n2,x,1,1,1,True,True\n")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestCollectFiles(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.csv", "notes.txt", "c.CSV"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755))

	// Act
	files, err := CollectFiles(dir)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.csv"),
		filepath.Join(dir, "b.csv"),
		filepath.Join(dir, "c.CSV"),
	}, files)
}

func TestCollectFiles_SingleFileAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	files, err := CollectFiles(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)

	_, err = CollectFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	empty := t.TempDir()
	_, err = CollectFiles(empty)
	assert.Error(t, err)
}
