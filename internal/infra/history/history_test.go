package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/vixcat/internal/domain"
)

func rec(kind domain.MediaKind, id string, title string) domain.HistoryEntry {
	return domain.HistoryEntry{
		Record:  domain.Record{ID: domain.ID(id), Kind: kind, Title: title, Genres: []string{}, SeasonEpisodes: map[string]int{}},
		Details: &domain.Details{Title: title},
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.json")

	s, err := Open(path, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer s.Close()

	got, err := s.Load()
	if err != nil || len(got) != 0 {
		t.Fatalf("文件不存在时期望空历史，实际 %v err=%v", got, err)
	}

	r := rec(domain.KindTV, "7", "Serie")
	r.SeasonEpisodes = map[string]int{"0": 2, "1": 10}
	zero, one := 0, 1
	r.Details = &domain.Details{Name: "Serie", PosterPath: "/s.jpg", Seasons: []domain.SeasonInfo{
		{SeasonNumber: &zero, EpisodeCount: 2},
		{SeasonNumber: &one, EpisodeCount: 10},
	}}
	if err := s.Save(map[string]domain.HistoryEntry{r.Key(): r}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	got, err = s.Load()
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	g := got["tv:7"]
	if g.Title != "Serie" || g.SeasonEpisodes["0"] != 2 {
		t.Fatalf("读回内容不一致：%+v", g)
	}
	if g.Details == nil || g.Details.PosterPath != "/s.jpg" || len(g.Details.Seasons) != 2 || *g.Details.Seasons[0].SeasonNumber != 0 {
		t.Fatalf("details 读回不一致：%+v", g.Details)
	}
}

func TestStore_LegacyEntryWithoutDetails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	legacy := `{"movie:1":{"id":"1","type":"movie","title":"Alpha","genres":[],"vote":7,"overview":"","season_episodes":{},"link":"x"}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	s, err := Open(path, true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	e, ok := got["movie:1"]
	if !ok || e.Title != "Alpha" {
		t.Fatalf("旧格式条目应能读入：%+v", got)
	}
	if e.Reusable() {
		t.Fatalf("缺少 details 的条目不应可复用")
	}
}

func TestStore_CorruptFileYieldsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	s, err := Open(path, true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	got, err := s.Load()
	var ce *CorruptError
	if !errors.As(err, &ce) {
		t.Fatalf("期望 CorruptError，实际 %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("损坏时期望空 map，实际 %v", got)
	}
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := Open(path, true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := s.Save(nil); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("期望文件不存在，但 Stat err=%v", err)
	}
}

func TestOpen_SecondWriterLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s1, err := Open(path, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer s1.Close()

	if _, err := Open(path, false); !errors.Is(err, ErrLocked) {
		t.Fatalf("期望 ErrLocked，实际 %v", err)
	}

	if err := s1.Close(); err != nil {
		t.Fatalf("释放锁失败：%v", err)
	}
	s2, err := Open(path, false)
	if err != nil {
		t.Fatalf("释放后应能重新获取锁：%v", err)
	}
	_ = s2.Close()
}

func TestMerge_KeepAndPrune(t *testing.T) {
	prev := map[string]domain.HistoryEntry{
		"movie:1": rec(domain.KindMovie, "1", "old"),
		"movie:2": rec(domain.KindMovie, "2", "gone"),
	}
	ph := rec(domain.KindMovie, "3", "ID 3")
	ph.Placeholder = true
	bare := rec(domain.KindMovie, "4", "bare")
	bare.Details = nil
	cur := []domain.HistoryEntry{rec(domain.KindMovie, "1", "new"), ph, bare}
	listed := map[string]struct{}{"movie:1": {}, "movie:3": {}, "movie:4": {}}

	kept := Merge(prev, cur, listed, false)
	if kept["movie:1"].Title != "new" || kept["movie:2"].Title != "gone" {
		t.Fatalf("prune=false 时应覆盖并保留旧记录：%+v", kept)
	}
	if _, ok := kept["movie:3"]; ok {
		t.Fatalf("占位记录不应写入历史")
	}
	if _, ok := kept["movie:4"]; ok {
		t.Fatalf("缺少 details 的条目不应写入历史")
	}

	pruned := Merge(prev, cur, listed, true)
	if _, ok := pruned["movie:2"]; ok {
		t.Fatalf("prune=true 时应移除未列出的记录")
	}
}
