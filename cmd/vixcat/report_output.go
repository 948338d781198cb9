package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/vixcat/internal/config"
	"github.com/John-Robertt/vixcat/internal/domain"
)

// emitReport 输出运行结果。
//
// 规则：
// - stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）
// - stdout 是 TTY：stdout 输出摘要行；失败的来源/条目以表格写到 stderr
func emitReport(e *env, rr domain.RunReport) {
	if !e.isTTY(e.stdout) {
		_ = json.NewEncoder(e.stdout).Encode(rr)
		fmt.Fprintln(e.stderr, summaryLine(rr))
		return
	}

	fmt.Fprintln(e.stdout, summaryLine(rr))
	if t := failureTable(rr); t != "" {
		fmt.Fprintln(e.stderr, t)
	}
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：records=%d enriched=%d reused=%d absent=%d failed=%d placeholders=%d sources_ok=%d sources_failed=%d",
		s.Records, s.Enriched, s.Reused, s.Absent, s.Failed, s.Placeholders, s.SourcesOK, s.SourcesFailed,
	)
}

// failureTable 汇总失败的来源与条目；没有失败时返回空串。absent 不算失败。
func failureTable(rr domain.RunReport) string {
	var rows []table.Row
	for _, src := range rr.Sources {
		if src.Status != domain.SourceStatusFailed {
			continue
		}
		rows = append(rows, table.Row{"source/" + src.Kind, truncate(src.URL, 60), httpStatus(src.HTTPStatus), src.ErrorCode, truncate(src.ErrorMsg, 80)})
	}
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		key := "<run>"
		if it.ID != "" {
			key = it.Kind + ":" + it.ID
		}
		rows = append(rows, table.Row{key, it.Provider, httpStatus(it.HTTPStatus), it.ErrorCode, truncate(it.ErrorMsg, 80)})
	}
	if len(rows) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"条目", "来源/provider", "HTTP", "error_code", "原因"})
	tw.AppendRows(rows)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func httpStatus(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}

// reportForSetupError 为配置/初始化阶段的错误生成只含一个合成条目的报告，
// 保证非 TTY 场景下 stdout 依然是一个 RunReport JSON。
func reportForSetupError(err error) domain.RunReport {
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	now := time.Now().UTC()
	rr := domain.RunReport{
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
			Attempts:  []domain.ProviderAttempt{},
		}},
	}
	rr.Finalize()
	return rr
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	if eff.DryRun {
		fmt.Fprintln(w, "dry-run：未写入任何文件")
		return
	}
	fmt.Fprintf(w, "page: %s\n", eff.Output)
	if eff.HistoryPath != "" {
		fmt.Fprintf(w, "history: %s\n", eff.HistoryPath)
	}
	if eff.Report != "" {
		fmt.Fprintf(w, "report: %s\n", eff.Report)
	}
}
