// Package eod aggregates a day's trade log into a per-pair CSV summary.
package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

type tradeLine struct {
	Time   string  `json:"time"`
	Pair   string  `json:"pair"`
	Side   string  `json:"side"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Reason string  `json:"reason"`
}

type aggRow struct {
	Pair        string
	BuyQty      float64
	BuyValue    float64
	SellQty     float64
	SellValue   float64
	RealizedPnL float64
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func tradeFile(t time.Time) string {
	return filepath.Join(logDir(), t.UTC().Format("2006-01-02")+".txt")
}

func csvPath(t time.Time) string {
	return filepath.Join(logDir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}

// SummarizeDay reads the day's trade log and writes the per-pair CSV.
// Returns the CSV path, or "" when there were no trades.
func SummarizeDay(t time.Time) (string, error) {
	inPath := tradeFile(t)
	f, err := os.Open(inPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	rows := map[string]*aggRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line tradeLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			continue
		}
		row := rows[line.Pair]
		if row == nil {
			row = &aggRow{Pair: line.Pair}
			rows[line.Pair] = row
		}
		if line.Price <= 0 {
			continue
		}
		qty := line.Amount / line.Price
		switch line.Side {
		case "BUY":
			row.BuyQty += qty
			row.BuyValue += line.Amount
		case "SELL":
			row.SellQty += qty
			row.SellValue += line.Amount
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	pairs := make([]string, 0, len(rows))
	for p := range rows {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)

	outPath := csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()
	if err := w.Write([]string{"pair", "buy_qty", "buy_value", "sell_qty", "sell_value", "realized_pnl"}); err != nil {
		return "", err
	}
	for _, p := range pairs {
		row := rows[p]
		if row.BuyQty > 0 && row.SellQty > 0 {
			avgBuy := row.BuyValue / row.BuyQty
			row.RealizedPnL = row.SellValue - row.SellQty*avgBuy
		}
		rec := []string{
			row.Pair,
			strconv.FormatFloat(row.BuyQty, 'f', 8, 64),
			fmt.Sprintf("%.2f", row.BuyValue),
			strconv.FormatFloat(row.SellQty, 'f', 8, 64),
			fmt.Sprintf("%.2f", row.SellValue),
			fmt.Sprintf("%.2f", row.RealizedPnL),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	return outPath, nil
}

// SummarizeToday runs SummarizeDay for the current UTC day.
func SummarizeToday() (string, error) {
	return SummarizeDay(time.Now().UTC())
}
