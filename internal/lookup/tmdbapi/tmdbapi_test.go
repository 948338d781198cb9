package tmdbapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
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

func TestParse_MovieFixture(t *testing.T) {
	d, err := Provider{}.Parse(domain.KindMovie, "603", readFixture(t, "movie_603.json"), "")
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if d.Title != "Matrix" || d.Runtime != 136 || d.ReleaseDate != "1999-03-31" {
		t.Fatalf("基础字段不符合预期：%+v", d)
	}
	if d.VoteAverage == nil || *d.VoteAverage != 8.216 {
		t.Fatalf("vote_average 不符合预期：%v", d.VoteAverage)
	}
	if len(d.Genres) != 2 || d.Genres[0] != "Azione" {
		t.Fatalf("genres 不符合预期：%v", d.Genres)
	}
	if len(d.Cast) != 3 || d.Cast[0] != "Keanu Reeves" {
		t.Fatalf("cast 不符合预期：%v", d.Cast)
	}
	if len(d.Seasons) != 0 {
		t.Fatalf("电影不应有季信息：%v", d.Seasons)
	}
}

func TestParse_TVFixture(t *testing.T) {
	d, err := Provider{}.Parse(domain.KindTV, "1399", readFixture(t, "tv_1399.json"), "")
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if d.Name != "Il Trono di Spade" || d.FirstAirDate != "2011-04-17" || d.NumberOfSeasons != 8 {
		t.Fatalf("基础字段不符合预期：%+v", d)
	}
	if len(d.Seasons) != 4 {
		t.Fatalf("期望保留全部 4 条季信息（过滤在 enrich 层做），实际 %d", len(d.Seasons))
	}
	if d.Seasons[2].SeasonNumber != nil {
		t.Fatalf("null season_number 应保持为 nil")
	}
}

func TestParse_ErrorEnvelopeAndGarbage(t *testing.T) {
	if _, err := (Provider{}).Parse(domain.KindMovie, "1", []byte(`{"status_code":7,"status_message":"Invalid API key","success":false}`), ""); err == nil {
		t.Fatalf("期望错误信封被识别为失败")
	}
	if _, err := (Provider{}).Parse(domain.KindMovie, "1", []byte(`<html>`), ""); err == nil {
		t.Fatalf("期望非 JSON 响应报错")
	}
}

func TestFetch_RequestShapeAndNotFound(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/603":
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"id":603,"title":"Matrix"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
		}
	}))
	defer srv.Close()

	p := Provider{BaseURL: srv.URL + "/", APIKey: "k123", Language: "it-IT", Credits: true}

	body, pageURL, err := p.Fetch(context.Background(), domain.KindMovie, "603", srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !strings.Contains(string(body), "Matrix") {
		t.Fatalf("响应体不符合预期：%s", body)
	}
	if pageURL != "https://www.themoviedb.org/movie/603" {
		t.Fatalf("pageURL 不符合预期：%q", pageURL)
	}
	for _, want := range []string{"api_key=k123", "language=it-IT", "append_to_response=credits"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query 缺少 %q：%q", want, gotQuery)
		}
	}

	_, _, err = p.Fetch(context.Background(), domain.KindTV, "999", srv.Client())
	if !lookup.IsNotFound(err) {
		t.Fatalf("期望 ErrNotFound，实际 %v", err)
	}
}

func TestFetch_MissingAPIKey(t *testing.T) {
	if _, _, err := (Provider{}).Fetch(context.Background(), domain.KindMovie, "1", http.DefaultClient); err == nil {
		t.Fatalf("期望缺少 api key 时报错")
	}
}
