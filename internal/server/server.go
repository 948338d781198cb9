// Package server 提供本地预览：托管生成的页面，并按 cron 计划定时重建。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/logging"
)

// ErrBusy 表示已有一次重建在进行中。
var ErrBusy = errors.New("已有构建在进行中")

// Refresher 执行一次完整构建（通常是 run.Execute 的闭包）。
type Refresher func(ctx context.Context) (domain.RunReport, error)

// Options 描述预览服务。
type Options struct {
	Addr string
	// Output 为页面文件路径（由 Refresher 写入）。
	Output string
	// Schedule 为 cron 表达式（支持 @every 6h 等描述符）；为空则只在启动时构建一次。
	Schedule string
	Refresh  Refresher
	Logger   *slog.Logger
}

// Server 是预览服务。
//
// 约束：
// - 同一时刻最多一次重建（定时与手动共用同一把闸门）
// - 页面直接从 Output 读取；重建失败时继续提供上一次的页面
type Server struct {
	opts   Options
	logger *slog.Logger
	cron   *cron.Cron

	running atomic.Bool

	mu      sync.RWMutex
	last    *domain.RunReport
	lastErr string
	lastAt  time.Time
}

// New 校验参数并构造 Server（不启动任何 goroutine）。
func New(opts Options) (*Server, error) {
	if opts.Refresh == nil {
		return nil, errors.New("refresh 不能为空")
	}
	if strings.TrimSpace(opts.Output) == "" {
		return nil, errors.New("output 不能为空")
	}
	s := &Server{opts: opts, logger: logging.Component(opts.Logger, "serve")}

	if spec := strings.TrimSpace(opts.Schedule); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("refresh 计划无效 %q：%w", spec, err)
		}
		s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := s.cron.AddFunc(spec, func() {
			if err := s.RefreshNow(context.Background()); err != nil && !errors.Is(err, ErrBusy) {
				s.logger.Warn("定时重建失败", logging.Err(err))
			}
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Router 返回 HTTP 路由。
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/index.html", s.handlePage).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/report.json", s.handleReport).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	return r
}

// RefreshNow 同步执行一次重建；已有重建在进行时立即返回 ErrBusy。
func (s *Server) RefreshNow(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return s.rebuild(ctx)
}

// rebuild 执行一次重建并在结束时释放闸门；调用方必须已经持有闸门。
func (s *Server) rebuild(ctx context.Context) error {
	defer s.running.Store(false)

	started := time.Now()
	rr, err := s.opts.Refresh(ctx)

	s.mu.Lock()
	s.last = &rr
	s.lastAt = time.Now().UTC()
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	s.logger.Info("重建完成",
		"records", rr.Summary.Records,
		"failed", rr.Summary.Failed,
		"sources_failed", rr.Summary.SourcesFailed,
		"duration", time.Since(started).Round(time.Millisecond).String(),
	)
	return err
}

// Run 启动：先构建一次，再启动定时器与 HTTP 服务；ctx 取消后优雅退出。
func (s *Server) Run(ctx context.Context) error {
	if err := s.RefreshNow(ctx); err != nil {
		// 首次构建失败不阻止服务启动：可能已有旧页面可用。
		s.logger.Warn("首次构建失败", logging.Err(err))
	}
	if s.cron != nil {
		s.cron.Start()
		defer func() { <-s.cron.Stop().Done() }()
	}

	addr := s.opts.Addr
	if strings.TrimSpace(addr) == "" {
		addr = ":8080"
	}
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	s.logger.Info("预览服务已启动", "addr", addr, "schedule", s.opts.Schedule)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.opts.Output)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "页面尚未生成", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		http.Error(w, "页面不可用", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", fi.ModTime(), f)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last == nil {
		http.Error(w, "尚无报告", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(last)
}

type health struct {
	Status      string     `json:"status"`
	Building    bool       `json:"building"`
	LastBuildAt *time.Time `json:"last_build_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := health{Status: "ok", Building: s.running.Load(), LastError: s.lastErr}
	if !s.lastAt.IsZero() {
		at := s.lastAt
		h.LastBuildAt = &at
	}
	s.mu.RUnlock()
	if h.LastError != "" {
		h.Status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h)
}

// handleRefresh 在返回 202 之前就占住闸门：连续的两个请求只有第一个被接受。
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.running.CompareAndSwap(false, true) {
		http.Error(w, ErrBusy.Error(), http.StatusConflict)
		return
	}
	go func() {
		if err := s.rebuild(context.Background()); err != nil {
			s.logger.Warn("手动重建失败", logging.Err(err))
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}
