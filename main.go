package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/cache"
	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/fetcher"
	"github.com/notionnext/pagecache/internal/fileurl"
	"github.com/notionnext/pagecache/internal/invalidate"
	"github.com/notionnext/pagecache/internal/logging"
	"github.com/notionnext/pagecache/internal/normalize"
	"github.com/notionnext/pagecache/internal/notion"
	"github.com/notionnext/pagecache/internal/page"
	"github.com/notionnext/pagecache/internal/scheduler"
	"github.com/notionnext/pagecache/internal/server"
	"github.com/notionnext/pagecache/internal/server/routes"
	"github.com/notionnext/pagecache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

// shutdownTimeout 限制退出时等待定时任务与在途请求的时间。
const shutdownTimeout = 10 * time.Second

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["tiers"] = cfg.Cache.EnabledTiers()
		fields["cron_schedule"] = cfg.Invalidation.CronSchedule
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	deps, err := buildServices(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}
	defer func() {
		if err := deps.cache.Close(); err != nil {
			logger.WithError(err).Warn("关闭缓存失败")
		}
	}()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["tiers"] = deps.cache.Tiers()
	fields["listen_port"] = cfg.Global.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, deps, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// services 保存启动时构建的共享实例。
type services struct {
	cache        *cache.Manager
	pages        *page.Service
	invalidation *invalidate.Service
	registry     *prometheus.Registry
}

// buildServices 按“指标注册表 → 缓存 → 上游客户端 → 抓取器 → 页面服务 → 失效服务”顺序装配，
// 所有请求共享同一组实例。
func buildServices(cfg *config.Config, logger *logrus.Logger) (*services, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	manager, err := cache.NewManager(cfg.Cache, logger, cache.WithMetrics(cache.NewMetrics(registry)))
	if err != nil {
		return nil, err
	}

	httpClient := server.NewUpstreamClient(cfg)
	client := notion.NewClient(cfg.Notion, httpClient, logger)
	pageFetcher := fetcher.New(client, manager, fetcher.Options{
		Attempts: cfg.Global.Attempts(),
		Backoff:  cfg.Global.InitialBackoff.DurationValue(),
		Metrics:  fetcher.NewMetrics(registry),
		Logger:   logger,
	})

	pages := page.NewService(manager, pageFetcher, page.Options{
		Dedupe: cfg.Cache.DedupeFetch,
		Normalizer: normalize.Normalizer{
			Rewriter: fileurl.Rewriter{SignedOrigin: cfg.Notion.SignedOrigin},
		},
		Logger: logger,
	})

	var revalidator invalidate.Revalidator
	if origin := cfg.Invalidation.RevalidateOrigin; origin != "" {
		revalidator = invalidate.NewHTTPRevalidator(origin, httpClient)
	}

	return &services{
		cache:        manager,
		pages:        pages,
		invalidation: invalidate.NewService(manager, revalidator, logger),
		registry:     registry,
	}, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("pagecache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 PAGECACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PAGECACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, deps *services, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.Register(app, routes.Dependencies{
		Invalidation: deps.invalidation,
		Pages:        deps.pages,
		Settings:     cfg.Invalidation,
		Gatherer:     deps.registry,
		Logger:       logger,
	})

	var jobs *scheduler.Scheduler
	if schedule := cfg.Invalidation.CronSchedule; schedule != "" {
		jobs, err = scheduler.New(schedule, shutdownTimeout, func(ctx context.Context) error {
			_, err := deps.invalidation.ScheduledClear(ctx)
			return err
		}, logger)
		if err != nil {
			return err
		}
		jobs.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown(app, jobs, logger)
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}

func shutdown(app *fiber.App, jobs *scheduler.Scheduler, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if jobs != nil {
		if err := jobs.Stop(ctx); err != nil {
			logger.WithError(err).Warn("定时任务未能按时停止")
		}
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.WithError(err).Warn("HTTP 服务关闭失败")
	}
}
