package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_JSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "info", Format: "json", Stderr: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer closer.Close()

	Component(logger, "run").Debug("hidden")
	Component(logger, "run").Info("hello", FieldID, "42")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("debug 应被过滤，期望 1 行，实际 %d：%q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("不是合法 JSON：%v", err)
	}
	if m["msg"] != "hello" || m[FieldComponent] != "run" || m[FieldID] != "42" {
		t.Fatalf("字段不符合预期：%v", m)
	}
	if ts, _ := m["time"].(string); !strings.HasSuffix(ts, "Z") {
		t.Fatalf("时间应为 UTC：%v", m["time"])
	}
}

func TestNew_FileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "vixcat.log")
	var buf bytes.Buffer

	logger, closer, err := New(Options{Format: "console", File: path, Stderr: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	logger.Warn("to-file")
	if err := closer.Close(); err != nil {
		t.Fatalf("关闭失败：%v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志文件失败：%v", err)
	}
	if !strings.Contains(string(b), "to-file") || !strings.Contains(buf.String(), "to-file") {
		t.Fatalf("期望 stderr 与文件都收到日志：file=%q stderr=%q", string(b), buf.String())
	}
}

func TestNew_RejectsUnknown(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("期望未知格式报错")
	}
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatalf("期望未知级别报错")
	}
}
