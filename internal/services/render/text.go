// Package render turns snapshots into human-readable text.
package render

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"MarketScreener/internal/domain/models"
	"MarketScreener/pkg/util"
)

type Renderer interface {
	Render(snap *models.Snapshot) string
}

// Text renders one row per active signal, newest first within each asset.
type Text struct {
	now func() time.Time
}

type Option func(*Text)

func WithClock(now func() time.Time) Option {
	return func(t *Text) { t.now = now }
}

func NewText(opts ...Option) *Text {
	t := &Text{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Text) Render(snap *models.Snapshot) string {
	var buf bytes.Buffer
	now := t.now()

	updated := now
	if snap != nil && !snap.At.IsZero() {
		updated = snap.At
	}
	fmt.Fprintf(&buf, "Updated at: %s\n\n", updated.Format("2006-01-02 15:04:05"))

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Symbol\tTF\tTM\tST\tPT\tCreated At")
	fmt.Fprintln(w, "------\t--\t--\t--\t--\t----------")
	if snap != nil {
		for _, a := range snap.Assets {
			for _, s := range a.Signals {
				fmt.Fprintf(w, "%s\t%s\t%2d,%2d\t%s\t%2d\t%s\n",
					a.Name, s.TimeFrame, s.Timing.Reference, s.Timing.Local,
					s.Name, s.Value, util.TimeAgo(s.CreatedAt, now))
			}
		}
	}
	_ = w.Flush()
	return buf.String()
}
