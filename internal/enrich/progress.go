// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"fmt"
	"io"
	"time"
)

const defaultProgressInterval = time.Second

// Progress prints throughput and ETA lines. Unforced reports are
// throttled to one per Interval and end with a carriage return so they
// overwrite each other; forced reports end with a newline.
type Progress struct {
	Out      io.Writer
	Total    int
	Unit     string
	Interval time.Duration
	Now      func() time.Time

	start time.Time
	last  time.Time
}

// NewProgress starts the clock. A zero total omits percentage and ETA.
func NewProgress(out io.Writer, total int, now func() time.Time) *Progress {
	if now == nil {
		now = time.Now
	}
	return &Progress{
		Out:      out,
		Total:    total,
		Unit:     "pmid",
		Interval: defaultProgressInterval,
		Now:      now,
		start:    now(),
	}
}

// Report prints a progress line unless one was printed less than Interval
// ago and force is false.
func (p *Progress) Report(processed, updated int, force bool) {
	if p == nil || p.Out == nil {
		return
	}
	now := p.Now()
	if !force && !p.last.IsZero() && now.Sub(p.last) < p.Interval {
		return
	}
	p.last = now

	end := "\r"
	if force {
		end = "\n"
	}
	fmt.Fprint(p.Out, p.Line(processed, updated, now.Sub(p.start))+end)
}

// Line formats one progress line for the given counts and elapsed time.
func (p *Progress) Line(processed, updated int, elapsed time.Duration) string {
	rate := 0.0
	if elapsed > 0 {
		rate = float64(processed) / elapsed.Seconds()
	}
	if p.Total <= 0 {
		return fmt.Sprintf("Processed %d | Updated %d | Rate %.1f %s/s | Elapsed %s",
			processed, updated, rate, p.Unit, FormatDuration(elapsed))
	}

	pct := float64(processed) / float64(p.Total) * 100
	var eta time.Duration
	if rate > 0 {
		remaining := max(p.Total-processed, 0)
		eta = time.Duration(float64(remaining) / rate * float64(time.Second))
	}
	return fmt.Sprintf("Processed %d/%d (%5.1f%%) | Updated %d | Rate %.1f %s/s | Elapsed %s | ETA %s",
		processed, p.Total, pct, updated, rate, p.Unit, FormatDuration(elapsed), FormatDuration(eta))
}

// FormatDuration renders d as "1h 2m 3s", "2m 3s" or "3s", truncated to
// whole seconds.
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, secs/60%60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
