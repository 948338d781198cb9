// Package render 把 Catalog 渲染为单文件 HTML 页面。
//
// 约束：
// - 数据以 JSON 内嵌在 <script type="application/json"> 中，由页面脚本读取
// - JSON 不做 HTML 转义（保持可读），但 "</" 必须写成 "<\/"、"<!--" 写成 "\u003c!--"，防止提前闭合 script
// - 输出只依赖输入：相同 Catalog + Options 两次渲染逐字节一致
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"strings"

	"github.com/John-Robertt/vixcat/internal/domain"
)

//go:embed templates/page.html.tmpl
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/page.html.tmpl"))

const (
	DefaultTitle = "Catalogo"
	DefaultLang  = "it"
	DefaultStep  = 40
)

// Options 是页面层面的可配置项。
type Options struct {
	Title string
	Lang  string
	// Step 为每次“加载更多”渲染的卡片数量。
	Step int
	// BlockedPrefixes 为播放器拒绝加载的 URL 前缀（广告跳转）。
	BlockedPrefixes []string
	// TVTemplate 为剧集的播放地址模板（{id} {season} {episode}），用于切换集数。
	TVTemplate string
}

type pageData struct {
	Title     string
	Lang      string
	HasLatest bool
	// html/template 把 application/json 的 script 视为 JS 上下文：
	// 只有 template.JS 会原样输出，其他类型会被再编码成 JS 字符串。
	Records template.JS
	Latest  template.JS
	Genres  template.JS
	Config  template.JS
}

type pageConfig struct {
	Step    int      `json:"step"`
	Blocked []string `json:"blocked"`
	TV      string   `json:"tv,omitempty"`
}

// Page 把 catalog 渲染到 w。
func Page(w io.Writer, cat domain.Catalog, opts Options) error {
	opts = withDefaults(opts)

	records, err := EmbedJSON(nonNil(cat.Records))
	if err != nil {
		return err
	}
	latest, err := EmbedJSON(nonNil(cat.Latest))
	if err != nil {
		return err
	}
	genres := map[domain.MediaKind][]string{}
	for k, v := range cat.Genres {
		genres[k] = v
	}
	genresJSON, err := EmbedJSON(genres)
	if err != nil {
		return err
	}
	blocked := opts.BlockedPrefixes
	if blocked == nil {
		blocked = []string{}
	}
	cfg, err := EmbedJSON(pageConfig{Step: opts.Step, Blocked: blocked, TV: opts.TVTemplate})
	if err != nil {
		return err
	}

	return pageTmpl.Execute(w, pageData{
		Title:     opts.Title,
		Lang:      opts.Lang,
		HasLatest: len(cat.Latest) > 0,
		Records:   records,
		Latest:    latest,
		Genres:    genresJSON,
		Config:    cfg,
	})
}

// Bytes 是 Page 的内存版本（先完整渲染，再由调用方原子落盘）。
func Bytes(cat domain.Catalog, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Page(&buf, cat, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var scriptSafe = strings.NewReplacer("</", `<\/`, "<!--", `\u003c!--`)

// EmbedJSON 把 v 编码为可安全放入 <script> 的 JSON。
func EmbedJSON(v any) (template.JS, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	s := strings.TrimSuffix(buf.String(), "\n")
	return template.JS(scriptSafe.Replace(s)), nil
}

func withDefaults(o Options) Options {
	if strings.TrimSpace(o.Title) == "" {
		o.Title = DefaultTitle
	}
	if strings.TrimSpace(o.Lang) == "" {
		o.Lang = DefaultLang
	}
	if o.Step <= 0 {
		o.Step = DefaultStep
	}
	return o
}

func nonNil(rs []domain.Record) []domain.Record {
	if rs == nil {
		return []domain.Record{}
	}
	return rs
}
