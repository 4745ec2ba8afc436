package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sagshome/ImageClean-sub000/internal/app/run"
	"github.com/sagshome/ImageClean-sub000/internal/config"
	"github.com/sagshome/ImageClean-sub000/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI writes run events to w (stderr), leaving stdout to the report.
// Duplicates and skips are listed only when verbose.
type progressUI struct {
	w       io.Writer
	verbose bool

	mu        sync.Mutex
	startedAt time.Time
}

func newProgressUI(w io.Writer, verbose bool) *progressUI {
	return &progressUI{w: w, verbose: verbose}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startedAt = time.Now()

	fmt.Fprintln(p.w, strings.Repeat("=", 50))
	fmt.Fprintln(p.w, "ImageClean")
	fmt.Fprintln(p.w, strings.Repeat("=", 50))
	fmt.Fprintf(p.w, "Input:   %s\n", eff.Input)
	fmt.Fprintf(p.w, "Output:  %s\n", eff.Output)
	fmt.Fprintf(p.w, "Policy:  keep=%s convert=%s rollover=%s check_small=%s manifest=%s\n",
		onOff(eff.KeepOriginals), onOff(eff.Convert), onOff(eff.Rollover), onOff(eff.CheckSmall), onOff(eff.Manifest),
	)
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "Config:  %s\n", eff.ConfigPath)
	}
	fmt.Fprintln(p.w)
	if !eff.Execute {
		fmt.Fprint(p.w, "[DRY RUN MODE - use -execute or -x to actually move files]\n\n")
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "Scanned: input=%d output=%d (%s)\n",
			intField(fields, "input_files"), intField(fields, "output_files"), formatShortDuration(dur),
		)
	case "resolve":
		fmt.Fprintf(p.w, "Resolved: import=%d skip=%d (%s)\n\n",
			intField(fields, "import"), intField(fields, "skip"), formatShortDuration(dur),
		)
	case "relocate":
		fmt.Fprintf(p.w, "\nProcessed %d/%d (%s)\n",
			intField(fields, "items"), intField(fields, "total"), formatShortDuration(dur),
		)
	case "finish":
		if n := intField(fields, "removed_dirs"); n > 0 {
			fmt.Fprintf(p.w, "Cleaned up %d empty folders\n", n)
		}
		if n := intField(fields, "manifest_added"); n > 0 {
			fmt.Fprintf(p.w, "Added %d entries to manifest\n", n)
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch res.Status {
	case domain.StatusPlanned, domain.StatusImported, domain.StatusConverted:
		note := ""
		if res.Status == domain.StatusConverted || res.Reason == "convert" {
			note = " (converted)"
		}
		fmt.Fprintf(p.w, "[%d/%d] %s\n    → %s%s\n", idx, total, res.Src, res.Dst, note)
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] FAIL %s %s: %s\n", idx, total, res.Src, res.ErrorCode, truncate(res.ErrorMsg, 160))
	default:
		if !p.verbose {
			return
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s, kept %s)\n", idx, total, strings.ToUpper(res.Status), res.Src, res.Reason, res.Kept)
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
