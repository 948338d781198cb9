package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/vixcat/internal/app/run"
	"github.com/John-Robertt/vixcat/internal/config"
	"github.com/John-Robertt/vixcat/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 约束：
// - 只写 stderr，不污染 stdout 的 JSON 输出契约
// - 长时间没有条目完成时定期输出一行 keepalive
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int
	skip    int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "build"
	if eff.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(p.w, "[%s] vixcat run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  providers: %s\n", strings.Join(eff.Providers, " -> "))
	fmt.Fprintf(p.w, "  language: %s\n", eff.Language)
	fmt.Fprintf(p.w, "  missing: %s\n", eff.Missing)
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  retry_max: %d\n", eff.RetryMax)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  history: %s\n", formatHistory(eff))
	fmt.Fprintln(p.w, "来源:")
	for _, s := range eff.Sources {
		fmt.Fprintf(p.w, "  %s %s (order=%s)\n", s.Kind, truncate(s.URL, 120), s.Order)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case run.PhaseSources:
		fmt.Fprintf(p.w, "来源: sources=%d ok=%d failed=%d ids=%d (%s)\n",
			intField(fields, "sources"), intField(fields, "ok"), intField(fields, "failed"), intField(fields, "ids"), formatShortDuration(dur),
		)
	case run.PhasePlan:
		fmt.Fprintf(p.w, "规划: items=%d reuse=%d lookups=%d\n",
			intField(fields, "items"), intField(fields, "reuse"), intField(fields, "lookups"),
		)
	case run.PhaseExec:
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: workers=%d total_items=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case run.PhaseWrite:
		fmt.Fprintf(p.w, "\n写入: bytes=%d history=%d (%s)\n",
			intField(fields, "bytes"), intField(fields, "history"), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	key := res.Kind + ":" + res.ID
	switch res.Status {
	case domain.StatusEnriched:
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %s OK provider=%s (%s)\n", idx, total, key, res.Provider, formatShortDuration(dur))
	case domain.StatusReused:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] %s REUSE (历史记录) (%s)\n", idx, total, key, formatShortDuration(dur))
	case domain.StatusAbsent:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] %s ABSENT%s (%s)\n", idx, total, key, placeholderNote(res), formatShortDuration(dur))
	default:
		p.fail++
		chain := formatAttemptChain(res.Attempts, 2)
		if chain != "" {
			chain = " attempts=" + chain
		}
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s%s%s (%s)\n",
			idx, total, key, res.ErrorCode, truncate(res.ErrorMsg, 160), placeholderNote(res), chain, formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免结束后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total, ok, fail, skip, active int, activeKeys []string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printProgressLocked(done, total, ok, fail, skip, active, elapsed)
}

func (p *progressUI) printProgressLocked(done, total, ok, fail, skip, active int, elapsed time.Duration) {
	fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d active=%d elapsed=%s\n",
		done, total, ok, fail, skip, active, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					active := min(p.workers, p.total-p.done)
					p.printProgressLocked(p.done, p.total, p.ok, p.fail, p.skip, active, time.Since(p.startedAt))
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func placeholderNote(res domain.ItemResult) string {
	if res.Placeholder {
		return " (占位)"
	}
	return ""
}

func formatHistory(eff config.EffectiveConfig) string {
	if eff.HistoryPath == "" {
		return "off"
	}
	var opts []string
	if eff.HistoryReuse {
		opts = append(opts, "reuse")
	}
	if eff.HistoryPrune {
		opts = append(opts, "prune")
	}
	if len(opts) == 0 {
		return eff.HistoryPath
	}
	return eff.HistoryPath + " (" + strings.Join(opts, ", ") + ")"
}

// formatProxy 只展示 scheme/host，不回显凭据。
func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
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

func formatAttemptChain(attempts []domain.ProviderAttempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Provider) + ":" + strings.TrimSpace(a.Stage)
		if ec := strings.TrimSpace(a.ErrorCode); ec != "" {
			s += ":" + ec
		}
		if em := strings.TrimSpace(a.ErrorMsg); em != "" {
			s += ":" + truncate(em, 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
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
