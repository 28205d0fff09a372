// 住院医师排班服务
// 主程序入口

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paiban/residency/internal/cache"
	"github.com/paiban/residency/internal/config"
	"github.com/paiban/residency/internal/database"
	"github.com/paiban/residency/internal/handler"
	"github.com/paiban/residency/internal/middleware"
	"github.com/paiban/residency/internal/repository"
	"github.com/paiban/residency/pkg/logger"
	"github.com/paiban/residency/pkg/scheduler"
	"github.com/paiban/residency/pkg/scheduler/solver"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
	})

	fmt.Printf("住院医师排班服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("服务异常退出")
		os.Exit(1)
	}
	logger.Info().Msg("服务器已关闭")
}

func run(ctx context.Context, cfg *config.Config) error {
	engineOpts := []scheduler.Option{
		scheduler.WithBigM(cfg.Scheduler.BigM),
		scheduler.WithTimeLimit(cfg.Scheduler.Timeout),
		scheduler.WithWarmStart(cfg.Scheduler.WarmStart),
		scheduler.WithSolver(solver.NewPBSolver(solver.Options{
			Limiter: solver.NewRoundLimiter(cfg.Scheduler.MaxRounds),
		})),
	}

	// 结果缓存
	if cfg.Redis.Enabled {
		client, err := cache.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		opts := cache.DefaultOptions()
		opts.TTL = cfg.Redis.TTL
		engineOpts = append(engineOpts, scheduler.WithCache(cache.New(client, opts)))
	}

	// 结果持久化
	var repo repository.ScheduleRepositoryInterface
	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
		repo = repository.NewScheduleRepository(db)
	}

	limiter := middleware.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateWindow)
	defer limiter.Stop()

	scheduleHandler := handler.NewScheduleHandler(handler.ScheduleHandlerConfig{
		Engine:   scheduler.NewEngine(engineOpts...),
		Repo:     repo,
		Defaults: cfg.Scheduler.Params(),
		Seed:     cfg.Scheduler.Seed,
		Timeout:  cfg.API.Timeout,
		Workers:  cfg.Scheduler.Workers,
	})

	routerCfg := handler.RouterConfig{
		Schedule:     scheduleHandler,
		Limiter:      limiter,
		Version:      handler.VersionInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit},
		MaxBodyBytes: cfg.API.MaxBodyBytes,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", addr).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Bool("database", cfg.Database.Enabled).
			Bool("redis", cfg.Redis.Enabled).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	})

	// 优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("正在关闭服务器...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务器关闭失败: %w", err)
		}
		return nil
	})

	return g.Wait()
}
