package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/ids"
	"github.com/John-Robertt/vixcat/internal/source"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingAPIKey 表示 provider 链需要 tmdb，但环境变量中没有 API key。
	ErrCodeMissingAPIKey = domain.ErrCodeConfigMissingAPIKey
)

const (
	DefaultOutput      = "index.html"
	DefaultAPIKeyEnv   = "TMDB_API_KEY"
	DefaultLanguage    = "it-IT"
	DefaultConcurrency = 1
	DefaultRetryMax    = 2
	DefaultTimeout     = 20 * time.Second
	DefaultMissing     = MissingDrop
	DefaultPageTitle   = "Catalogo"
	DefaultPageLang    = "it"
	DefaultPageStep    = 40
	DefaultPageLatest  = 10
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
)

const (
	// MissingDrop：不存在/查询失败的条目不进入页面。
	MissingDrop = "drop"
	// MissingPlaceholder：以 "ID {id}" 占位记录进入页面。
	MissingPlaceholder = "placeholder"
)

// 自动发现的配置文件名（按顺序，第一个存在的生效）。
var discoverNames = []string{"vixcat.toml", "vixcat.yaml", "vixcat.yml"}

// DefaultProviders 是 provider 链的内置默认值。
var DefaultProviders = []string{"tmdb"}

// DefaultBlockedPrefixes 是播放器内默认拦截的广告跳转前缀。
var DefaultBlockedPrefixes = []string{"https://jepsauveel.net/"}

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --concurrency=1 必须能覆盖配置中的 4。
type CLIArgs struct {
	ConfigPath string

	Output    string
	OutputSet bool

	History    string
	HistorySet bool

	Report    string
	ReportSet bool

	Concurrency    int
	ConcurrencySet bool

	DryRun bool
}

// FileConfig 对应 vixcat.toml / vixcat.yaml 的解析结构。
type FileConfig struct {
	Output            string         `toml:"output" yaml:"output"`
	Report            string         `toml:"report" yaml:"report"`
	History           HistoryConfig  `toml:"history" yaml:"history"`
	Language          string         `toml:"language" yaml:"language"`
	Providers         []string       `toml:"providers" yaml:"providers"`
	APIKeyEnv         string         `toml:"api_key_env" yaml:"api_key_env"`
	Credits           bool           `toml:"credits" yaml:"credits"`
	Missing           string         `toml:"missing" yaml:"missing"`
	SkipSpecials      bool           `toml:"skip_specials" yaml:"skip_specials"`
	Concurrency       int            `toml:"concurrency" yaml:"concurrency"`
	Throttle          string         `toml:"throttle" yaml:"throttle"`
	RequestsPerSecond float64        `toml:"requests_per_second" yaml:"requests_per_second"`
	RetryMax          *int           `toml:"retry_max" yaml:"retry_max"`
	Timeout           string         `toml:"timeout" yaml:"timeout"`
	Proxy             ProxyConfig    `toml:"proxy" yaml:"proxy"`
	APIBase           string         `toml:"api_base" yaml:"api_base"`
	WebBase           string         `toml:"web_base" yaml:"web_base"`
	ImageBase         string         `toml:"image_base" yaml:"image_base"`
	Player            PlayerConfig   `toml:"player" yaml:"player"`
	Page              PageConfig     `toml:"page" yaml:"page"`
	Log               LogConfig      `toml:"log" yaml:"log"`
	Sources           []SourceConfig `toml:"sources" yaml:"sources"`
}

type HistoryConfig struct {
	Path  string `toml:"path" yaml:"path"`
	Reuse bool   `toml:"reuse" yaml:"reuse"`
	Prune bool   `toml:"prune" yaml:"prune"`
}

type ProxyConfig struct {
	URL string `toml:"url" yaml:"url"`
}

type PlayerConfig struct {
	Movie           string    `toml:"movie" yaml:"movie"`
	TV              string    `toml:"tv" yaml:"tv"`
	BlockedPrefixes *[]string `toml:"blocked_prefixes" yaml:"blocked_prefixes"`
}

type PageConfig struct {
	Title  string `toml:"title" yaml:"title"`
	Lang   string `toml:"lang" yaml:"lang"`
	Step   int    `toml:"step" yaml:"step"`
	Latest *int   `toml:"latest" yaml:"latest"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	File   string `toml:"file" yaml:"file"`
}

type SourceConfig struct {
	Kind  string   `toml:"kind" yaml:"kind"`
	URL   string   `toml:"url" yaml:"url"`
	Order string   `toml:"order" yaml:"order"`
	Keys  []string `toml:"keys" yaml:"keys"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 为实际读取的配置文件（未使用配置文件时为空）。
	ConfigPath string

	Output string
	Report string
	DryRun bool

	HistoryPath  string
	HistoryReuse bool
	HistoryPrune bool

	Language  string
	Providers []string
	// APIKey 只来自环境变量，不会出现在任何输出中。
	APIKey       string
	APIKeyEnv    string
	Credits      bool
	Missing      string
	SkipSpecials bool

	Concurrency       int
	Throttle          time.Duration
	RequestsPerSecond float64
	RetryMax          int
	Timeout           time.Duration
	ProxyURL          string

	APIBase   string
	WebBase   string
	ImageBase string

	PlayerMovie     string
	PlayerTV        string
	BlockedPrefixes []string

	PageTitle  string
	PageLang   string
	PageStep   int
	PageLatest int

	LogLevel  string
	LogFormat string
	LogFile   string

	Sources []source.Source
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingAPIKey:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	case ErrCodeInvalid:
		if e.Err != nil {
			if e.Path == "" {
				return fmt.Sprintf("%s：%v", e.Code, e.Err)
			}
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数、环境变量合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则依次尝试 <cwd>/vixcat.toml、vixcat.yaml、vixcat.yml（可选，都不存在则全部使用默认值）
//
// 覆盖优先级（固定）：
// - output/history/report/concurrency：CLI > config > 默认
// - API key：只来自环境变量（变量名由 api_key_env 决定，默认 TMDB_API_KEY）
// - 其他字段：仅由 config 控制（CLI 不暴露）
//
// getenv 为 nil 时使用 os.Getenv。
func LoadEffective(cwd string, cli CLIArgs, getenv func(string) string) (EffectiveConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range discoverNames {
			p := filepath.Join(cwdAbs, name)
			f, exists, rerr := readFileConfig(p)
			if rerr != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: rerr}
			}
			if exists {
				cfgPath, fc = p, f
				break
			}
		}
	}

	return merge(cwdAbs, cli, fc, cfgPath, getenv)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string, getenv func(string) string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	eff := EffectiveConfig{
		ConfigPath:   cfgPath,
		DryRun:       cli.DryRun,
		HistoryReuse: fc.History.Reuse,
		HistoryPrune: fc.History.Prune,
		Credits:      fc.Credits,
		SkipSpecials: fc.SkipSpecials,
	}

	// output：CLI > config > 默认
	output := DefaultOutput
	if cli.OutputSet {
		output = cli.Output
	} else if strings.TrimSpace(fc.Output) != "" {
		output = fc.Output
	}
	if strings.TrimSpace(output) == "" {
		return EffectiveConfig{}, invalid("output 不能为空")
	}
	eff.Output = absCleanFrom(cwdAbs, output)

	history := fc.History.Path
	if cli.HistorySet {
		history = cli.History
	}
	eff.HistoryPath = absCleanFrom(cwdAbs, history)
	if eff.HistoryReuse && eff.HistoryPath == "" {
		return EffectiveConfig{}, invalid("history.reuse=true 但 history.path 为空")
	}

	report := fc.Report
	if cli.ReportSet {
		report = cli.Report
	}
	eff.Report = absCleanFrom(cwdAbs, report)

	eff.Language = strings.TrimSpace(fc.Language)
	if eff.Language == "" {
		eff.Language = DefaultLanguage
	}

	providers, err := normalizeProviders(fc.Providers)
	if err != nil {
		return EffectiveConfig{}, invalid("%v", err)
	}
	eff.Providers = providers

	eff.APIKeyEnv = strings.TrimSpace(fc.APIKeyEnv)
	if eff.APIKeyEnv == "" {
		eff.APIKeyEnv = DefaultAPIKeyEnv
	}
	eff.APIKey = strings.TrimSpace(getenv(eff.APIKeyEnv))
	if eff.APIKey == "" && contains(providers, "tmdb") {
		return EffectiveConfig{}, &Error{
			Code: ErrCodeMissingAPIKey,
			Path: cfgPath,
			Err:  fmt.Errorf("环境变量 %s 未设置（provider 链包含 tmdb）", eff.APIKeyEnv),
		}
	}

	eff.Missing = strings.ToLower(strings.TrimSpace(fc.Missing))
	switch eff.Missing {
	case "":
		eff.Missing = DefaultMissing
	case MissingDrop, MissingPlaceholder:
	default:
		return EffectiveConfig{}, invalid("missing 只能是 drop 或 placeholder，实际是 %q", fc.Missing)
	}

	// concurrency：CLI > config > 默认；范围 [1, 32]，超出截断。
	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}
	eff.Concurrency = concurrency

	if s := strings.TrimSpace(fc.Throttle); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			return EffectiveConfig{}, invalid("throttle 无效：%q", fc.Throttle)
		}
		eff.Throttle = d
	}
	if fc.RequestsPerSecond < 0 {
		return EffectiveConfig{}, invalid("requests_per_second 不能为负数")
	}
	eff.RequestsPerSecond = fc.RequestsPerSecond

	eff.RetryMax = DefaultRetryMax
	if fc.RetryMax != nil {
		if *fc.RetryMax < 0 || *fc.RetryMax > 5 {
			return EffectiveConfig{}, invalid("retry_max 范围为 [0, 5]，实际是 %d", *fc.RetryMax)
		}
		eff.RetryMax = *fc.RetryMax
	}

	eff.Timeout = DefaultTimeout
	if s := strings.TrimSpace(fc.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return EffectiveConfig{}, invalid("timeout 无效：%q", fc.Timeout)
		}
		eff.Timeout = d
	}

	eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	if eff.ProxyURL != "" {
		if err := validateHTTPURL(eff.ProxyURL); err != nil {
			return EffectiveConfig{}, invalid("proxy.url 无效：%v", err)
		}
	}

	for _, f := range []struct {
		name string
		val  string
		dst  *string
	}{
		{"api_base", fc.APIBase, &eff.APIBase},
		{"web_base", fc.WebBase, &eff.WebBase},
		{"image_base", fc.ImageBase, &eff.ImageBase},
	} {
		v := strings.TrimSpace(f.val)
		if v == "" {
			continue
		}
		if err := validateHTTPURL(v); err != nil {
			return EffectiveConfig{}, invalid("%s 无效：%v", f.name, err)
		}
		*f.dst = v
	}

	eff.PlayerMovie = strings.TrimSpace(fc.Player.Movie)
	eff.PlayerTV = strings.TrimSpace(fc.Player.TV)
	if eff.PlayerMovie != "" && !strings.Contains(eff.PlayerMovie, "{id}") {
		return EffectiveConfig{}, invalid("player.movie 必须包含 {id}")
	}
	if eff.PlayerTV != "" && !strings.Contains(eff.PlayerTV, "{id}") {
		return EffectiveConfig{}, invalid("player.tv 必须包含 {id}")
	}
	eff.BlockedPrefixes = append([]string(nil), DefaultBlockedPrefixes...)
	if fc.Player.BlockedPrefixes != nil {
		eff.BlockedPrefixes = cleanList(*fc.Player.BlockedPrefixes)
	}

	eff.PageTitle = strings.TrimSpace(fc.Page.Title)
	if eff.PageTitle == "" {
		eff.PageTitle = DefaultPageTitle
	}
	eff.PageLang = strings.TrimSpace(fc.Page.Lang)
	if eff.PageLang == "" {
		eff.PageLang = DefaultPageLang
	}
	eff.PageStep = fc.Page.Step
	if eff.PageStep <= 0 {
		eff.PageStep = DefaultPageStep
	}
	eff.PageLatest = DefaultPageLatest
	if fc.Page.Latest != nil {
		if *fc.Page.Latest < 0 {
			return EffectiveConfig{}, invalid("page.latest 不能为负数")
		}
		eff.PageLatest = *fc.Page.Latest
	}

	eff.LogLevel = strings.ToLower(strings.TrimSpace(fc.Log.Level))
	switch eff.LogLevel {
	case "":
		eff.LogLevel = DefaultLogLevel
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, invalid("log.level 只能是 debug/info/warn/error，实际是 %q", fc.Log.Level)
	}
	eff.LogFormat = strings.ToLower(strings.TrimSpace(fc.Log.Format))
	switch eff.LogFormat {
	case "":
		eff.LogFormat = DefaultLogFormat
	case "console", "json":
	default:
		return EffectiveConfig{}, invalid("log.format 只能是 console 或 json，实际是 %q", fc.Log.Format)
	}
	eff.LogFile = absCleanFrom(cwdAbs, fc.Log.File)

	sources, err := normalizeSources(fc.Sources)
	if err != nil {
		return EffectiveConfig{}, invalid("%v", err)
	}
	eff.Sources = sources

	return eff, nil
}

func normalizeProviders(in []string) ([]string, error) {
	if len(in) == 0 {
		return append([]string(nil), DefaultProviders...), nil
	}
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		switch p {
		case "tmdb", "tmdbweb":
		case "":
			return nil, fmt.Errorf("providers 中不能有空值")
		default:
			return nil, fmt.Errorf("provider 只能是 tmdb 或 tmdbweb，实际是 %q", p)
		}
		if _, ok := seen[p]; ok {
			return nil, fmt.Errorf("重复的 provider：%q", p)
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func normalizeSources(in []SourceConfig) ([]source.Source, error) {
	if len(in) == 0 {
		return source.Defaults(), nil
	}
	out := make([]source.Source, 0, len(in))
	for i, sc := range in {
		kind, ok := domain.ParseKind(sc.Kind)
		if !ok {
			return nil, fmt.Errorf("sources[%d].kind 只能是 movie 或 tv，实际是 %q", i, sc.Kind)
		}
		u := strings.TrimSpace(sc.URL)
		if err := validateHTTPURL(u); err != nil {
			return nil, fmt.Errorf("sources[%d].url 无效：%v", i, err)
		}
		order, err := ids.ParseOrder(sc.Order)
		if err != nil {
			return nil, fmt.Errorf("sources[%d]：%v", i, err)
		}
		out = append(out, source.Source{Kind: kind, URL: u, Order: order, Keys: cleanList(sc.Keys)})
	}
	return out, nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("缺少 host：%q", raw)
	}
	return nil
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute；空串保持为空。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 按扩展名读取并解析 TOML/YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.NewDecoder(bytes.NewReader(b)).Decode(&fc); err != nil {
			return FileConfig{}, true, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return FileConfig{}, true, err
		}
	default:
		return FileConfig{}, true, fmt.Errorf("不支持的配置文件格式：%q（仅支持 .toml/.yaml/.yml）", filepath.Ext(path))
	}
	return fc, true, nil
}
