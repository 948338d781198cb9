package lookup

import (
	"strings"
	"testing"
)

func TestRedactURL(t *testing.T) {
	cases := map[string]string{
		"https://api.test/3/movie/1?api_key=abc&language=it-IT":                    "https://api.test/3/movie/1?api_key=REDACTED&language=it-IT",
		`Get "https://api.test/3/tv/2?language=it&API_KEY=abc": dial tcp: refused`: `Get "https://api.test/3/tv/2?language=it&API_KEY=REDACTED": dial tcp: refused`,
		"https://vixsrc.to/api/list/movie?lang=it":                                 "https://vixsrc.to/api/list/movie?lang=it",
	}
	for in, want := range cases {
		if got := RedactURL(in); got != want {
			t.Fatalf("期望 %q，实际 %q", want, got)
		}
	}
	if strings.Contains(RedactURL("x?token=s3cr3t#frag"), "s3cr3t") {
		t.Fatalf("token 未被去除")
	}
}
