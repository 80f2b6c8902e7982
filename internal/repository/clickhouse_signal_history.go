package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"MarketScreener/internal/domain/models"
	pkgch "MarketScreener/pkg/clickhouse"
)

// CHSignalHistory implements SignalHistory on the signal_events table.
type CHSignalHistory struct {
	db    *sql.DB
	table string
}

func NewCHSignalHistory(ch *pkgch.Client) *CHSignalHistory {
	return &CHSignalHistory{db: ch.DB(), table: ch.Database() + ".signal_events"}
}

// Record inserts events in multi-row chunks. Refreshes carry no transition and are skipped.
func (h *CHSignalHistory) Record(ctx context.Context, events []models.SignalEvent) error {
	const chunkSize = 2000
	for start := 0; start < len(events); start += chunkSize {
		end := min(start+chunkSize, len(events))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, e := range events[start:end] {
			if e.Change == models.ChangeNone || e.Change == models.ChangeRefreshed {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				e.At,
				e.Symbol,
				string(e.TimeFrame),
				e.Name,
				int8(e.Value),
				int8(e.Previous),
				e.Change.String(),
				int8(e.Timing.Reference),
				int8(e.Timing.Local),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (at, symbol, tf, name, value, previous, change, reference, local) VALUES %s",
			h.table, strings.Join(values, ","))
		if _, err := h.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert signal events: %w", err)
		}
	}
	return nil
}

func (h *CHSignalHistory) Close() error {
	return nil // pool is owned by pkg/clickhouse
}
