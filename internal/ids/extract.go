package ids

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/John-Robertt/vixcat/internal/domain"
)

// Order 决定输出 ID 的顺序；调用方必须显式选择，不存在默认值。
type Order string

const (
	// OrderNumeric 按数值升序（输出可 diff）。
	OrderNumeric Order = "numeric"
	// OrderUpstream 保持上游首次出现的顺序。
	OrderUpstream Order = "upstream"
)

// ParseOrder 解析配置中的 order 字段。空串视为未指定，返回错误。
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case OrderNumeric:
		return OrderNumeric, nil
	case OrderUpstream:
		return OrderUpstream, nil
	case "":
		return "", errors.New("order 必须显式指定为 numeric 或 upstream")
	default:
		return "", fmt.Errorf("order 只能是 numeric 或 upstream，实际是 %q", s)
	}
}

// DefaultKeys 是按优先级探测的 ID 字段名；第一个“有值”的字段胜出。
var DefaultKeys = []string{"tmdb_id", "tmdbId", "id"}

// ErrBadEnvelope 表示列表响应既不是数组，也没有 results/result 数组字段。
var ErrBadEnvelope = errors.New("列表响应既不是数组，也不含 results/result 数组")

// Unwrap 接受裸数组或 {"results": [...]} / {"result": [...]} 包装，返回条目列表。
func Unwrap(raw []byte) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrBadEnvelope
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	case '{':
		var env map[string]json.RawMessage
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, err
		}
		for _, k := range []string{"results", "result"} {
			v, ok := env[k]
			if !ok {
				continue
			}
			v = bytes.TrimSpace(v)
			if len(v) == 0 || v[0] != '[' {
				continue
			}
			var items []json.RawMessage
			if err := json.Unmarshal(v, &items); err != nil {
				return nil, err
			}
			return items, nil
		}
	}
	return nil, ErrBadEnvelope
}

// Rejected 记录一个“有 ID 字段但值不是合法数字”的条目（不会进入结果）。
type Rejected struct {
	Index  int
	Key    string
	Value  string
	Reason string
}

// Result 是一次提取的结果与统计。
type Result struct {
	IDs        []domain.ID
	Skipped    int // 非对象、或所有字段都缺失/为空
	Rejected   []Rejected
	Duplicates int
}

// Extract 从列表条目中提取去重后的 ID。
//
// 约束：
// - keys 为空时使用 DefaultKeys；按顺序探测，null/空串/0/false 视为缺失，继续探测下一个字段
// - 非数字的值 fail closed：记入 Rejected，不进入结果，也不报错
// - 同一 ID 以不同字段名出现时只保留一次
// - order 非法时返回错误（这是调用方的编程错误）
func Extract(items []json.RawMessage, order Order, keys ...string) (Result, error) {
	if order != OrderNumeric && order != OrderUpstream {
		return Result{}, fmt.Errorf("非法 order：%q", order)
	}
	if len(keys) == 0 {
		keys = DefaultKeys
	}

	res := Result{IDs: make([]domain.ID, 0, len(items))}
	seen := make(map[domain.ID]struct{}, len(items))

	for i, raw := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			res.Skipped++
			continue
		}

		key, val, found := pickField(obj, keys)
		if !found {
			res.Skipped++
			continue
		}

		id, reason := coerce(val)
		if reason != "" {
			res.Rejected = append(res.Rejected, Rejected{Index: i, Key: key, Value: string(val), Reason: reason})
			continue
		}
		if _, ok := seen[id]; ok {
			res.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		res.IDs = append(res.IDs, id)
	}

	if order == OrderNumeric {
		sort.Slice(res.IDs, func(i, j int) bool { return res.IDs[i].Int() < res.IDs[j].Int() })
	}
	return res, nil
}

func pickField(obj map[string]json.RawMessage, keys []string) (string, json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if isEmptyValue(v) {
			continue
		}
		return k, v, true
	}
	return "", nil, false
}

func isEmptyValue(v json.RawMessage) bool {
	switch string(v) {
	case "", "null", `""`, "false", "[]", "{}":
		return true
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err == nil && strings.TrimSpace(s) == "" {
			return true
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if f, err := strconv.ParseFloat(string(v), 64); err == nil && f == 0 {
			return true
		}
	}
	return false
}

// coerce 把 JSON 值转换为 ID；失败时返回原因。
func coerce(v json.RawMessage) (domain.ID, string) {
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", "字符串无法解码"
		}
		if id, ok := domain.ParseID(s); ok {
			return id, ""
		}
		return "", "不是正整数"
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			if id, ok := domain.IDFromInt(n); ok {
				return id, ""
			}
			return "", "不是正整数"
		}
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil || f != math.Trunc(f) || f <= 0 || f >= math.MaxInt64 {
			return "", "不是正整数"
		}
		id, _ := domain.IDFromInt(int64(f))
		return id, ""
	default:
		return "", "类型不是数字或字符串"
	}
}
