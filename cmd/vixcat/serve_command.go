package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/vixcat/internal/app/run"
	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/server"
)

func newServeCommand(e *env) *cobra.Command {
	var (
		flags   buildFlags
		addr    string
		refresh string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "本地预览：启动时构建一次，并按计划定时重建",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(e, flags.cliArgs(cmd))
			if err != nil {
				return err
			}
			defer s.Close()

			srv, err := server.New(server.Options{
				Addr:     addr,
				Output:   s.eff.Output,
				Schedule: refresh,
				Logger:   s.logger,
				Refresh: func(ctx context.Context) (domain.RunReport, error) {
					return run.Execute(ctx, s.eff, s.reg, run.Deps{Logger: s.logger})
				},
			})
			if err != nil {
				fmt.Fprintf(e.stderr, "参数错误：%v\n", err)
				return &exitError{code: exitInvalid, err: err}
			}

			if err := srv.Run(contextOf(cmd)); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(e.stderr, "预览服务异常退出：%v\n", err)
				return &exitError{code: exitFailed, err: err}
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "监听地址")
	cmd.Flags().StringVar(&refresh, "refresh", "", "定时重建的 cron 表达式（例如 @every 6h；为空则只构建一次）")
	return cmd
}
