package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/vixcat/internal/app/run"
)

func newRunCommand(e *env) *cobra.Command {
	var (
		flags  buildFlags
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "构建一次目录页",
		Long: `拉取配置中的全部列表来源，逐条向 TMDB 查询详情，生成单文件 HTML 目录页。

stdout 不是终端时只输出一个 RunReport JSON；日志与进度始终写到 stderr。
退出码：0 成功；1 有来源失败或写入失败；2 参数/配置错误。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := flags.cliArgs(cmd)
			cli.DryRun = dryRun

			s, err := open(e, cli)
			if err != nil {
				emitReport(e, reportForSetupError(err))
				return err
			}
			defer s.Close()

			var obs run.Observer
			if e.isTTY(e.stderr) {
				obs = newProgressUI(e.stderr)
			}

			rr, err := run.Execute(contextOf(cmd), s.eff, s.reg, run.Deps{Logger: s.logger, Observer: obs})
			emitReport(e, rr)
			if obs != nil {
				emitLocations(e.stderr, s.eff)
			}
			if err != nil {
				fmt.Fprintf(e.stderr, "运行失败：%v\n", err)
				return &exitError{code: exitFailed, err: err}
			}
			if rr.Summary.SourcesFailed > 0 {
				return &exitError{code: exitFailed, err: fmt.Errorf("%d 个来源失败", rr.Summary.SourcesFailed)}
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "只构建不落盘（历史只读、不加锁；报告仍输出到 stdout）")
	return cmd
}
