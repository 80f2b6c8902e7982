package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketScreener/internal/domain/models"
	pkgch "MarketScreener/pkg/clickhouse"
	applogger "MarketScreener/pkg/logger"
)

// Indicator names stored in indicator_values that are not moving averages.
const (
	IndicatorMACDLine   = "MACD.line"
	IndicatorMACDSignal = "MACD.signal"
	IndicatorMACDHist   = "MACD.hist"
	IndicatorStochK     = "STOCH.k"
	IndicatorStochD     = "STOCH.d"
	IndicatorATR        = "ATR"
)

// CHIndicatorFeed implements IndicatorFeed backed by ClickHouse.
// Any indicator name not listed above is loaded as a moving average.
type CHIndicatorFeed struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHIndicatorFeed(ch *pkgch.Client, l *applogger.Logger) *CHIndicatorFeed {
	return &CHIndicatorFeed{db: ch.DB(), database: ch.Database(), l: l}
}

// Series loads the newest depth bars and their indicator values, newest first.
func (f *CHIndicatorFeed) Series(ctx context.Context, symbol string, tf models.TimeFrame, depth int) (*models.Series, error) {
	start := time.Now()
	bars, err := f.bars(ctx, symbol, tf, depth)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: no bars: %w", symbol, tf, models.ErrInsufficientData)
	}

	values, err := f.indicators(ctx, symbol, tf, bars[len(bars)-1].Time)
	if err != nil {
		return nil, err
	}

	s := assemble(symbol, tf, bars, values)
	if f.l != nil {
		f.l.Debug("clickhouse series ok",
			applogger.String("symbol", symbol),
			applogger.String("tf", tf.String()),
			applogger.Int("bars", len(bars)),
			applogger.Int("indicators", len(values)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return s, nil
}

func (f *CHIndicatorFeed) bars(ctx context.Context, symbol string, tf models.TimeFrame, depth int) ([]models.Bar, error) {
	q := fmt.Sprintf(`
        SELECT ts, open, high, low, close, closed
        FROM %s.bars FINAL
        WHERE symbol = ? AND tf = ?
        ORDER BY ts DESC
        LIMIT ?`, f.database)
	rows, err := f.db.QueryContext(ctx, q, symbol, string(tf), depth)
	if err != nil {
		f.logErr("clickhouse bars query error", symbol, tf, err)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, depth)
	for rows.Next() {
		var b models.Bar
		var closed uint8
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &closed); err != nil {
			f.logErr("clickhouse bars scan error", symbol, tf, err)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Closed = closed == 1
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		f.logErr("clickhouse bars rows error", symbol, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

type indicatorValue struct {
	ts    time.Time
	name  string
	value float64
}

func (f *CHIndicatorFeed) indicators(ctx context.Context, symbol string, tf models.TimeFrame, since time.Time) ([]indicatorValue, error) {
	q := fmt.Sprintf(`
        SELECT ts, name, value
        FROM %s.indicator_values FINAL
        WHERE symbol = ? AND tf = ? AND ts >= ?
        ORDER BY ts DESC`, f.database)
	rows, err := f.db.QueryContext(ctx, q, symbol, string(tf), since)
	if err != nil {
		f.logErr("clickhouse indicators query error", symbol, tf, err)
		return nil, fmt.Errorf("get indicators: %w", err)
	}
	defer rows.Close()

	var out []indicatorValue
	for rows.Next() {
		var v indicatorValue
		if err := rows.Scan(&v.ts, &v.name, &v.value); err != nil {
			f.logErr("clickhouse indicators scan error", symbol, tf, err)
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (f *CHIndicatorFeed) logErr(msg, symbol string, tf models.TimeFrame, err error) {
	if f.l == nil {
		return
	}
	f.l.Error(msg,
		applogger.String("symbol", symbol),
		applogger.String("tf", tf.String()),
		applogger.Error(err),
	)
}

// assemble aligns indicator rows with bars by timestamp. Each indicator is cut
// at its first gap so that index i always refers to bar i. A forming bar at
// index 0 is not a gap: indicators are usually written on close, so its slot
// is zero-padded and the column continues with the closed bars.
func assemble(symbol string, tf models.TimeFrame, bars []models.Bar, values []indicatorValue) *models.Series {
	index := make(map[int64]int, len(bars))
	for i, b := range bars {
		index[b.Time.UnixMilli()] = i
	}

	cols := map[string][]float64{}
	seen := map[string][]bool{}
	for _, v := range values {
		i, ok := index[v.ts.UnixMilli()]
		if !ok {
			continue
		}
		if _, ok := cols[v.name]; !ok {
			cols[v.name] = make([]float64, len(bars))
			seen[v.name] = make([]bool, len(bars))
		}
		cols[v.name][i] = v.value
		seen[v.name][i] = true
	}
	first := 0
	if len(bars) > 0 && !bars[0].Closed {
		first = 1
	}
	for name, col := range cols {
		n := first
		for n < len(col) && seen[name][n] {
			n++
		}
		cols[name] = col[:n]
	}

	s := &models.Series{
		Symbol:    symbol,
		TimeFrame: tf,
		Bars:      bars,
		MA:        map[string][]float64{},
	}
	for name, col := range cols {
		switch {
		case strings.HasPrefix(name, "MACD."), strings.HasPrefix(name, "STOCH."):
		case name == IndicatorATR:
			s.ATR = col
		default:
			s.MA[name] = col
		}
	}

	line, sig, hist := cols[IndicatorMACDLine], cols[IndicatorMACDSignal], cols[IndicatorMACDHist]
	for i := 0; i < min(len(line), len(sig), len(hist)); i++ {
		s.MACD = append(s.MACD, models.MACDPoint{Line: line[i], Signal: sig[i], Histogram: hist[i]})
	}
	k, d := cols[IndicatorStochK], cols[IndicatorStochD]
	for i := 0; i < min(len(k), len(d)); i++ {
		s.Stoch = append(s.Stoch, models.StochPoint{K: k[i], D: d[i]})
	}
	return s
}
