package tmdbweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/lookup"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return b
}

func TestParse_HeaderTitle(t *testing.T) {
	d, err := Provider{}.Parse(domain.KindMovie, "603", readFixture(t, "movie.html"), "https://www.themoviedb.org/movie/603")
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if d.Title != "Matrix" {
		t.Fatalf("期望标题 Matrix，实际 %q", d.Title)
	}
	if d.PosterURL != "https://media.themoviedb.org/t/p/w500/matrix.jpg" {
		t.Fatalf("海报不符合预期：%q", d.PosterURL)
	}
	if d.Overview == "" {
		t.Fatalf("期望解析出简介")
	}
	if len(d.Genres) != 2 || d.Genres[1] != "Fantascienza" {
		t.Fatalf("genres 不符合预期：%v", d.Genres)
	}
	if d.VoteAverage == nil || *d.VoteAverage != 8.2 {
		t.Fatalf("评分换算不符合预期：%v", d.VoteAverage)
	}
}

func TestParse_TitleFallback(t *testing.T) {
	d, err := Provider{}.Parse(domain.KindTV, "1399", readFixture(t, "title_only.html"), "")
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if d.Name != "Il Trono di Spade" || d.Title != "" {
		t.Fatalf("剧集应回退到 <title> 并写入 Name：%+v", d)
	}
	if d.Overview != "Sette famiglie." {
		t.Fatalf("期望回退到 meta description，实际 %q", d.Overview)
	}
	if d.VoteAverage != nil {
		t.Fatalf("没有评分时应为 nil")
	}
}

func TestParse_NoTitle(t *testing.T) {
	if _, err := (Provider{}).Parse(domain.KindMovie, "1", []byte(`<html><body><p>x</p></body></html>`), ""); err == nil {
		t.Fatalf("期望找不到标题时报错")
	}
}

func TestFetch_NotFoundAndLanguage(t *testing.T) {
	page := readFixture(t, "movie.html")
	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/movie/603" {
			gotLang = r.URL.Query().Get("language")
			_, _ = w.Write(page)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := Provider{BaseURL: srv.URL}
	_, pageURL, err := p.Fetch(context.Background(), domain.KindMovie, "603", srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if pageURL != srv.URL+"/movie/603" || gotLang != DefaultLanguage {
		t.Fatalf("请求形态不符合预期：pageURL=%q language=%q", pageURL, gotLang)
	}

	if _, _, err := p.Fetch(context.Background(), domain.KindMovie, "1", srv.Client()); !lookup.IsNotFound(err) {
		t.Fatalf("期望 ErrNotFound，实际 %v", err)
	}
}
