package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/infra/fsx"
)

var (
	ErrReadOnly = errors.New("history: read-only")
	// ErrLocked 表示另一个进程正持有同一历史文件的运行锁。
	ErrLocked = errors.New("history: 另一个构建正在使用该历史文件")
)

// CorruptError 表示历史文件存在但无法解析；调用方应告警并以空历史继续。
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("历史文件 %q 无法解析：%v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Store 是扁平 JSON 历史文件：{"movie:42": HistoryEntry, ...}（Record 字段 + details）。
//
// 约束：
// - 启动时整体读入，结束时整体重写（原子替换），不做增量写
// - 可写模式下持有 <path>.lock 文件锁，同一历史文件同时只允许一个构建
// - 只读模式（dry-run）：允许读，拒绝写，不加锁
type Store struct {
	Path     string
	ReadOnly bool

	lock *flock.Flock
}

// Open 打开历史文件并（可写模式下）获取运行锁。文件本身不存在不是错误。
func Open(path string, readOnly bool) (*Store, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" || path == "." {
		return nil, fmt.Errorf("history path 不能为空")
	}
	s := &Store{Path: path, ReadOnly: readOnly}
	if readOnly {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取历史文件锁失败：%w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	s.lock = fl
	return s, nil
}

// Close 释放运行锁（可重复调用）。
func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	err := s.lock.Unlock()
	s.lock = nil
	return err
}

// Load 读取全部历史记录。文件不存在返回空 map；内容损坏返回空 map + *CorruptError。
func (s *Store) Load() (map[string]domain.HistoryEntry, error) {
	out := map[string]domain.HistoryEntry{}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return out, nil
	}

	var raw map[string]domain.HistoryEntry
	if err := json.Unmarshal(b, &raw); err != nil {
		return out, &CorruptError{Path: s.Path, Err: err}
	}
	for k, r := range raw {
		// key 与记录内容不一致的条目视为坏数据，直接丢弃。
		if r.ID == "" || !r.Kind.Valid() || r.Key() != k {
			continue
		}
		if r.SeasonEpisodes == nil {
			r.SeasonEpisodes = map[string]int{}
		}
		out[k] = r
	}
	return out, nil
}

// Save 整体重写历史文件（map 的 key 在 JSON 中按字典序输出，结果确定）。
func (s *Store) Save(records map[string]domain.HistoryEntry) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	if records == nil {
		records = map[string]domain.HistoryEntry{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFile(s.Path, b)
}

// Merge 把本次构建的条目合并进历史。
//
// 规则：
// - 本次条目覆盖同 key 的旧条目；不可复用的条目（占位、缺少 Details）不写入历史
// - prune=false：上游已不再列出的旧条目保留；prune=true：只保留本次出现的 key（listed）
func Merge(prev map[string]domain.HistoryEntry, cur []domain.HistoryEntry, listed map[string]struct{}, prune bool) map[string]domain.HistoryEntry {
	out := make(map[string]domain.HistoryEntry, len(prev)+len(cur))
	for k, e := range prev {
		if prune {
			if _, ok := listed[k]; !ok {
				continue
			}
		}
		out[k] = e
	}
	for _, e := range cur {
		if !e.Reusable() {
			continue
		}
		out[e.Key()] = e
	}
	return out
}
