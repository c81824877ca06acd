package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"TubeDigest/internal/config"
	"TubeDigest/internal/downloader"
	"TubeDigest/internal/event"
	"TubeDigest/internal/output"
	"TubeDigest/internal/pipeline"
	_ "TubeDigest/internal/plugins"
	"TubeDigest/internal/run"
	"TubeDigest/internal/summarizer"
	"TubeDigest/internal/transcriber"
	"TubeDigest/pkg/logger"
	"TubeDigest/pkg/plugin"
)

// options 汇总命令行参数，非空值覆盖配置文件。
type options struct {
	configPath  string
	url         string
	urlList     string
	method      string
	style       string
	length      string
	format      string
	outputDir   string
	pluginsDir  string
	listPlugins bool
	showPlugins bool
	workers     int
}

// main 是 tubedigest 命令行工具的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := parseFlags()
	if err := runCLI(ctx, opts); err != nil {
		log.Fatalf("tubedigest 运行失败: %v", err)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "配置文件路径，缺省时读取环境变量 "+config.EnvConfigPath)
	flag.StringVar(&opts.url, "url", "", "要处理的视频 URL")
	flag.StringVar(&opts.urlList, "urls", "", "逗号分隔的批处理 URL 列表")
	flag.StringVar(&opts.method, "transcription-method", "", "转录方式: whisper、whisper_cli 或 captions")
	flag.StringVar(&opts.style, "summary-style", "", "摘要风格: comprehensive、bullet_points、key_points 或 structured")
	flag.StringVar(&opts.length, "summary-length", "", "摘要篇幅: short、medium 或 long")
	flag.StringVar(&opts.format, "format", "", "产物格式: text、markdown、json 或 pdf")
	flag.StringVar(&opts.outputDir, "output-dir", "", "摘要产物目录")
	flag.StringVar(&opts.pluginsDir, "plugins-dir", "", "插件清单目录")
	flag.BoolVar(&opts.listPlugins, "list-plugins", false, "仅列出发现的插件后退出")
	flag.BoolVar(&opts.showPlugins, "show-plugins", false, "处理前打印已加载插件的状态")
	flag.IntVar(&opts.workers, "workers", 0, "队列消费的工作协程数")
	flag.Parse()
	return opts
}

func runCLI(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)

	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Audit: logger.AuditConfig{
			Enabled: cfg.Log.AuditPath != "",
			Path:    cfg.Log.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	slog.SetDefault(logger.L())

	bus := event.NewBus(event.WithLogger(logger.L()))
	manager, err := plugin.NewManager(bus,
		plugin.WithDirectory(cfg.Plugins.Dir),
		plugin.WithConfigPath(cfg.Plugins.ConfigPath),
		plugin.WithLogger(logger.L()),
	)
	if err != nil {
		return err
	}

	// --list-plugins 只做清单发现，不触碰下载、转录等外部依赖。
	if opts.listPlugins {
		printDiscovered(manager.Discover())
		return nil
	}

	loaded := manager.LoadAll()
	if opts.showPlugins {
		printStatus(manager.Status(), loaded)
	}

	urls := collectURLs(opts)
	if len(urls) == 0 {
		return fmt.Errorf("没有要处理的 URL，使用 --url 或 --urls 指定")
	}

	if err := os.MkdirAll(cfg.Runtime.OutputDir, 0o755); err != nil {
		return err
	}

	if err := attachPipeline(bus, manager, cfg); err != nil {
		return err
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	queue, err := buildQueue(cfg)
	if err != nil {
		_ = store.Close()
		return err
	}

	tracker := run.NewTracker(bus)
	runner := run.NewRunner(store, manager, tracker, logger.L())
	service := run.NewService(store, queue)
	defer service.Close()

	consumeCtx, cancelConsume := context.WithCancel(ctx)
	defer cancelConsume()
	go func() {
		if err := queue.Consume(consumeCtx, cfg.Queue.Workers, runner.Handler()); err != nil && ctx.Err() == nil {
			logger.L().Error("队列消费退出", slog.Any("error", err))
		}
	}()

	report, err := service.SubmitAll(ctx, urls, 200*time.Millisecond)
	if err != nil {
		return err
	}
	printReport(report)
	if report.Failed > 0 {
		return fmt.Errorf("%d/%d 个 URL 处理失败", report.Failed, report.Total)
	}
	return nil
}

func loadConfig(opts options) (*config.Config, error) {
	path := config.Resolve(opts.configPath)
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyOverrides 让命令行参数覆盖配置文件。
func applyOverrides(cfg *config.Config, opts options) {
	if opts.method != "" {
		cfg.Transcription.Method = opts.method
	}
	if opts.style != "" {
		cfg.Summary.Style = opts.style
	}
	if opts.length != "" {
		cfg.Summary.Length = opts.length
	}
	if opts.format != "" {
		cfg.Summary.Format = opts.format
	}
	if opts.outputDir != "" {
		cfg.Runtime.OutputDir = opts.outputDir
	}
	if opts.pluginsDir != "" {
		cfg.Plugins.Dir = opts.pluginsDir
	}
	if opts.workers > 0 {
		cfg.Queue.Workers = opts.workers
	}
}

// attachPipeline 构建下载、转录、摘要三个阶段并挂到事件总线上。
func attachPipeline(bus *event.Bus, manager *plugin.Manager, cfg *config.Config) error {
	backends := collectBackends(manager, cfg)

	speech, err := buildSpeechBackend(cfg)
	if err != nil {
		return err
	}

	summaryClient, err := summarizer.NewClient(summarizer.Config{
		APIKey:  cfg.Summary.APIKey,
		BaseURL: cfg.Summary.BaseURL,
		Model:   cfg.Summary.Model,
	})
	if err != nil {
		return err
	}

	pipeline.Attach(bus,
		pipeline.NewDownloadStage(bus, backends, logger.L()),
		pipeline.NewTranscriptionStage(bus, speech, backends, pipeline.TranscriptionConfig{
			Method:       normalizeMethod(cfg.Transcription.Method),
			Language:     cfg.Transcription.Language,
			PreferManual: cfg.Transcription.PreferManual,
		}, logger.L()),
		pipeline.NewSummarizationStage(bus, summaryClient, output.NewWriter(cfg.Runtime.OutputDir), pipeline.SummaryConfig{
			Style:  cfg.Summary.Style,
			Length: cfg.Summary.Length,
			Format: cfg.Summary.Format,
		}, logger.L()),
	)
	return nil
}

// collectBackends 汇总提供者插件暴露的下载后端，没有插件时退回内置后端。
func collectBackends(manager *plugin.Manager, cfg *config.Config) *downloader.Registry {
	type backendSource interface {
		Backend() downloader.Backend
	}

	backends := make([]downloader.Backend, 0, 2)
	for _, p := range manager.ByKind(plugin.KindProvider) {
		if source, ok := p.(backendSource); ok {
			backends = append(backends, source.Backend())
		}
	}
	if len(backends) == 0 {
		runner := downloader.NewRunner(
			downloader.WithBinary(cfg.Runtime.YtDlpBinary),
			downloader.WithDestDir(cfg.Runtime.DownloadDir),
		)
		backends = append(backends, downloader.NewYouTube(runner), downloader.NewVimeo(runner))
	}
	return downloader.NewRegistry(backends...)
}

func buildSpeechBackend(cfg *config.Config) (transcriber.Backend, error) {
	switch cfg.Transcription.Method {
	case "captions":
		return nil, nil
	case "whisper_cli":
		return transcriber.NewCLIClient(
			transcriber.WithCLIModel(cfg.Transcription.WhisperModel),
			transcriber.WithCLIOutputDir(cfg.Runtime.DataDir),
		), nil
	default:
		return transcriber.NewAPIClient(transcriber.APIConfig{
			APIKey:  cfg.Transcription.APIKey,
			BaseURL: cfg.Transcription.BaseURL,
			Model:   cfg.Transcription.WhisperModel,
		})
	}
}

// normalizeMethod 把 whisper_cli 映射到管道的 whisper 方式，
// 两者只在语音后端的构建上有差异。
func normalizeMethod(method string) string {
	if method == "captions" {
		return pipeline.MethodCaptions
	}
	return pipeline.MethodWhisper
}

func buildStore(cfg *config.Config) (run.Store, error) {
	switch cfg.RunStore.Driver {
	case "", "memory":
		return run.NewMemoryStore(), nil
	case "mysql":
		return run.NewMySQLStore(cfg.RunStore.DSN)
	default:
		return nil, fmt.Errorf("不支持的运行存储驱动: %s", cfg.RunStore.Driver)
	}
}

func buildQueue(cfg *config.Config) (run.Queue, error) {
	switch cfg.Queue.Driver {
	case "", "memory":
		return run.NewMemoryQueue(1024), nil
	case "redis":
		return run.NewRedisQueue(run.RedisQueueConfig{
			Address:  cfg.Queue.Address,
			Password: cfg.Queue.Password,
			DB:       cfg.Queue.DB,
			Queue:    cfg.Queue.Name,
		})
	case "rabbitmq":
		return run.NewRabbitMQQueue(run.RabbitMQConfig{
			URL:      cfg.Queue.URL,
			Queue:    cfg.Queue.Name,
			Prefetch: cfg.Queue.Workers,
			Durable:  true,
		})
	default:
		return nil, fmt.Errorf("不支持的队列驱动: %s", cfg.Queue.Driver)
	}
}

func collectURLs(opts options) []string {
	urls := make([]string, 0, 4)
	if opts.url != "" {
		urls = append(urls, opts.url)
	}
	for _, url := range strings.Split(opts.urlList, ",") {
		if url = strings.TrimSpace(url); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}

func printDiscovered(infos []plugin.Info) {
	if len(infos) == 0 {
		fmt.Println("未发现任何插件")
		return
	}
	fmt.Printf("发现 %d 个插件:\n", len(infos))
	for _, info := range infos {
		fmt.Printf("  %-24s %-10s v%-8s %s\n", info.Name, info.Kind, info.Version, info.Description)
	}
}

func printStatus(status plugin.Status, loaded map[string]bool) {
	fmt.Printf("已加载 %d 个插件 (%d 提供者, %d 处理器):\n", status.Total, status.Providers, status.Processors)
	names := make([]string, 0, len(status.Plugins))
	for name := range status.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := status.Plugins[name]
		state := "enabled"
		if !entry.Enabled {
			state = "disabled"
		}
		fmt.Printf("  %-24s %-10s v%-8s %s\n", name, entry.Kind, entry.Version, state)
	}
	for name, ok := range loaded {
		if !ok {
			fmt.Printf("  %-24s 加载失败\n", name)
		}
	}
}

func printReport(report run.BatchReport) {
	fmt.Printf("批处理完成: 共 %d, 成功 %d, 失败 %d\n", report.Total, report.Succeeded, report.Failed)
	for _, url := range report.FailedURLs {
		fmt.Printf("  失败: %s\n", url)
	}
}
