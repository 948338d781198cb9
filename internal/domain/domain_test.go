package domain

import "testing"

func TestParseID(t *testing.T) {
	cases := []struct {
		in   string
		want ID
		ok   bool
	}{
		{"42", "42", true},
		{" 0042 ", "42", true},
		{"0", "", false},
		{"-3", "", false},
		{"abc", "", false},
		{"1.5", "", false},
		{"", "", false},
		{"99999999999999999999", "", false},
	}
	for _, c := range cases {
		got, ok := ParseID(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseID(%q)：期望 (%q,%v)，实际 (%q,%v)", c.in, c.want, c.ok, got, ok)
		}
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind(" TV "); !ok || k != KindTV {
		t.Fatalf("期望 tv，实际 %q ok=%v", k, ok)
	}
	if _, ok := ParseKind("anime"); ok {
		t.Fatalf("期望未知 kind 返回 false")
	}
}

func TestNewCatalog_LatestAndGenres(t *testing.T) {
	recs := []Record{
		{ID: "1", Kind: KindMovie, Genres: []string{"Dramma", "Azione"}, ReleaseDate: "2020-01-01"},
		{ID: "2", Kind: KindMovie, Genres: []string{"Azione", "Ćommedia"}, ReleaseDate: "2024-05-01"},
		{ID: "3", Kind: KindTV, Genres: []string{"Animazione"}, ReleaseDate: "2024-05-01"},
		{ID: "4", Kind: KindTV, Placeholder: true, ReleaseDate: "2030-01-01"},
		{ID: "5", Kind: KindTV},
	}

	c := NewCatalog(recs, 2, "it")

	if len(c.Records) != 5 {
		t.Fatalf("Records 不应被重排或过滤：%d", len(c.Records))
	}
	if len(c.Latest) != 2 || c.Latest[0].ID != "2" || c.Latest[1].ID != "3" {
		t.Fatalf("Latest 不符合预期（倒序 + 稳定 + 跳过占位）：%+v", c.Latest)
	}

	movie := c.Genres[KindMovie]
	// 本地化排序：Ć 应与 C 相邻而不是排到 Z 之后。
	want := []string{"Azione", "Ćommedia", "Dramma"}
	if len(movie) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, movie)
	}
	for i := range want {
		if movie[i] != want[i] {
			t.Fatalf("期望 %v，实际 %v", want, movie)
		}
	}
	if tv := c.Genres[KindTV]; len(tv) != 1 || tv[0] != "Animazione" {
		t.Fatalf("tv genres 不符合预期：%v", tv)
	}
}
