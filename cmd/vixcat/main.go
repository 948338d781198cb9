package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		os.Exit(1)
	}
	code := execute(ctx, &env{
		cwd:    cwd,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		isTTY:  isTerminal,
	}, os.Args[1:])
	stop()
	os.Exit(code)
}

// env 是 CLI 的外部环境。测试用它替换 stdout/stderr/环境变量与 TTY 判定。
type env struct {
	cwd    string
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	isTTY  func(io.Writer) bool
}

// exitError 携带退出码；cobra 的错误默认按参数错误（2）处理。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// 退出码：0 成功；1 来源失败或写入失败；2 参数/配置错误。
const (
	exitOK      = 0
	exitFailed  = 1
	exitInvalid = 2
)

func execute(ctx context.Context, e *env, args []string) int {
	root := newRootCommand(e)
	root.SetArgs(args)
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		// 诊断已由子命令输出。
		return ee.code
	}
	fmt.Fprintf(e.stderr, "参数错误：%v\n", err)
	return exitInvalid
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
