package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/vixcat/internal/app/run"
	"github.com/John-Robertt/vixcat/internal/config"
	"github.com/John-Robertt/vixcat/internal/logging"
	"github.com/John-Robertt/vixcat/internal/lookup"
)

func newRootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "vixcat",
		Short:         "从 TMDB 列表生成可浏览的静态影视目录页",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(newRunCommand(e))
	root.AddCommand(newServeCommand(e))
	return root
}

// buildFlags 是 run 与 serve 共享的构建参数。
type buildFlags struct {
	config      string
	output      string
	history     string
	report      string
	concurrency int
}

func (f *buildFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "配置文件路径（默认在当前目录查找 vixcat.toml / vixcat.yaml）")
	fs.StringVarP(&f.output, "output", "o", "", "输出页面路径（默认 index.html）")
	fs.StringVar(&f.history, "history", "", "历史 JSON 文件路径（可选）")
	fs.StringVar(&f.report, "report", "", "运行报告 JSON 路径（可选）")
	fs.IntVar(&f.concurrency, "concurrency", 0, "并发查询数（1..32）")
}

func (f *buildFlags) cliArgs(cmd *cobra.Command) config.CLIArgs {
	fs := cmd.Flags()
	return config.CLIArgs{
		ConfigPath:     strings.TrimSpace(f.config),
		Output:         f.output,
		OutputSet:      fs.Changed("output"),
		History:        f.history,
		HistorySet:     fs.Changed("history"),
		Report:         f.report,
		ReportSet:      fs.Changed("report"),
		Concurrency:    f.concurrency,
		ConcurrencySet: fs.Changed("concurrency"),
	}
}

// session 是一次命令执行所需的全部运行期对象。
type session struct {
	eff    config.EffectiveConfig
	reg    lookup.Registry
	logger *slog.Logger
	closer io.Closer
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// open 加载配置、初始化日志与 provider 注册表。失败时已在 stderr 输出诊断。
func open(e *env, cli config.CLIArgs) (*session, error) {
	eff, err := config.LoadEffective(e.cwd, cli, e.getenv)
	if err != nil {
		fmt.Fprintf(e.stderr, "配置错误：%v\n", err)
		return nil, &exitError{code: exitInvalid, err: err}
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  eff.LogLevel,
		Format: eff.LogFormat,
		File:   eff.LogFile,
		Stderr: e.stderr,
	})
	if err != nil {
		fmt.Fprintf(e.stderr, "初始化日志失败：%v\n", err)
		return nil, &exitError{code: exitInvalid, err: err}
	}

	reg, err := run.NewRegistry(eff)
	if err != nil {
		_ = closer.Close()
		fmt.Fprintf(e.stderr, "初始化 provider registry 失败：%v\n", err)
		return nil, &exitError{code: exitInvalid, err: err}
	}
	if eff.ConfigPath != "" {
		logger.Debug("已读取配置文件", "path", eff.ConfigPath)
	}
	return &session{eff: eff, reg: reg, logger: logger, closer: closer}, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
