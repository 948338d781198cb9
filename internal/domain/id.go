package domain

import (
	"strconv"
	"strings"
)

// ID 是条目在元数据源中的规范化主键（十进制正整数的字符串形式，如 "42"）。
//
// 约束：同一批次内 (kind, id) 唯一；前导零、空白在解析时被去掉。
type ID string

// ParseID 校验并规范化数字 ID。
// 非数字、零、负数或超出 int64 的输入都返回 false。
func ParseID(s string) (ID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return "", false
	}
	return ID(strconv.FormatInt(n, 10)), true
}

// IDFromInt 把正整数转换为 ID。
func IDFromInt(n int64) (ID, bool) {
	if n <= 0 {
		return "", false
	}
	return ID(strconv.FormatInt(n, 10)), true
}

// Int 返回数值形式；ID 由 ParseID 产生时不会失败。
func (id ID) Int() int64 {
	n, _ := strconv.ParseInt(string(id), 10, 64)
	return n
}

// Key 是 (kind, id) 的稳定键，用于历史文件与去重。
func Key(kind MediaKind, id ID) string {
	return string(kind) + ":" + string(id)
}
