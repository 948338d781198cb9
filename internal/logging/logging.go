// Package logging 构造运行期使用的 slog.Logger。
//
// 约束：
// - 日志只写 stderr（以及可选的滚动文件），stdout 保留给报告输出
// - 任何字段都不应包含 API key（调用方负责先脱敏 URL/错误）
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldKind      = "kind"
	FieldID        = "id"
	FieldSource    = "source"
	FieldErrorCode = "error_code"
)

// 日志文件滚动参数。
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 28
)

// Options 描述 logger 的构造参数。
type Options struct {
	Level  string
	Format string
	// File 非空时额外写入该文件（按大小滚动）。
	File string
	// Stderr 为 nil 时使用 os.Stderr。
	Stderr io.Writer
}

// New 返回 logger 与需要在退出前关闭的资源（无文件时为 no-op）。
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var w io.Writer = opts.Stderr
	if w == nil {
		w = os.Stderr
	}
	var closer io.Closer = nopCloser{}

	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("创建日志目录失败：%w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
		}
		w = io.MultiWriter(w, lj)
		closer = lj
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	hopts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		h = slog.NewTextHandler(w, hopts)
	case "json":
		h = slog.NewJSONHandler(w, hopts)
	default:
		return nil, nil, fmt.Errorf("不支持的日志格式：%q", opts.Format)
	}
	return slog.New(h), closer, nil
}

// ParseLevel 解析 debug/info/warn/error（空串视为 info）。
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("不支持的日志级别：%q", s)
	}
}

// NewNop 返回丢弃所有输出的 logger。
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Component 在 logger 上附加 component 字段；logger 为 nil 时使用 no-op。
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldComponent, name))
}

// Err 统一错误字段名。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// 时间统一为 UTC RFC3339，与报告保持一致。
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
