package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"trade-mirror-go/config"
	"trade-mirror-go/infrastructure/alert"
	"trade-mirror-go/infrastructure/logger"
	"trade-mirror-go/internal/report"
	"trade-mirror-go/internal/snapshot"
	"trade-mirror-go/internal/store"
	"trade-mirror-go/internal/syncer"
	"trade-mirror-go/metrics"
	"trade-mirror-go/venue"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	metricsAddr := flag.String("metricsAddr", "", "Prometheus metrics 监听地址，覆盖配置文件；留空用配置")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zlog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	addr := cfg.Metrics.Addr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		metrics.StartMetricsServer(addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &venue.RESTClient{
		BaseURL:    cfg.Venue.BaseURL,
		APIKey:     cfg.Venue.APIKey,
		AccountID:  cfg.Venue.AccountID,
		HTTPClient: venue.NewDefaultHTTPClient(time.Duration(cfg.Venue.TimeoutSeconds) * time.Second),
	}

	st := store.New(func(event string, fields map[string]interface{}) {
		zlog.LogSync(event, fields)
	})
	sy := syncer.New(source, st, zlog, syncer.Config{
		Lookback:     cfg.Sync.Lookback(),
		MaxDealsScan: cfg.Sync.MaxDealsScan,
	})

	alerts := alert.NewManager([]alert.Channel{
		alert.NewLogChannel("log", zlog),
	}, 5*time.Minute)

	app := &mirrorApp{
		store:  st,
		syncer: sy,
		log:    zlog,
		alerts: alerts,
		cfg:    cfg,
	}
	app.applyConfig(cfg)

	// 配置热更新：只接受上报开关、采集端地址与周期的变化
	watcher := &config.Watcher{Path: *cfgPath}
	if err := watcher.Start(ctx, app.applyConfig); err != nil {
		zlog.LogError(err, map[string]interface{}{"op": "config_watch"})
	}

	// 变更推送流（可选）：推送到达时在定时器之间额外跑一轮
	ticks := make(chan struct{}, 1)
	if cfg.Venue.StreamURL != "" {
		go runStream(ctx, cfg.Venue.StreamURL, ticks, zlog)
	}

	notifySystemd(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	interval := cfg.Sync.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	zlog.LogSync("mirror_started", map[string]interface{}{
		"id":       cfg.Identity.ID,
		"mode":     cfg.Identity.Mode,
		"interval": interval.String(),
	})

	app.cycle(ctx)
	for {
		select {
		case <-ticker.C:
			app.cycle(ctx)
			if d := app.interval(); d != interval {
				interval = d
				ticker.Reset(interval)
			}
		case <-ticks:
			app.cycle(ctx)
		case sig := <-sigs:
			zlog.LogSync("mirror_stopping", map[string]interface{}{"signal": sig.String()})
			cancel()
			return
		}
	}
}

// mirrorApp 把一次同步-序列化-发送周期的协作方绑在一起。
// 周期串行执行（单写者约定），配置热更新只替换 reporter 与周期参数。
type mirrorApp struct {
	store  *store.Store
	syncer *syncer.Syncer
	log    *logger.Logger
	alerts *alert.Manager

	mu       sync.Mutex
	cfg      config.AppConfig
	reporter *report.Reporter
	digits   snapshot.DigitsFunc
	identity snapshot.Identity
}

func (a *mirrorApp) applyConfig(cfg config.AppConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	a.reporter = report.New(report.Config{
		BaseURL:      cfg.Collector.BaseURL,
		Enabled:      cfg.Collector.Enabled,
		Timeout:      time.Duration(cfg.Collector.TimeoutSeconds) * time.Second,
		ProbeTimeout: time.Duration(cfg.Collector.ProbeTimeoutSeconds) * time.Second,
	}, a.log)
	a.identity = snapshot.Identity{
		ID:   cfg.Identity.ID,
		Mode: snapshot.Mode(cfg.Identity.Mode),
	}
	symbols := cfg.Symbols
	a.digits = func(symbol string) int {
		if sc, ok := symbols[symbol]; ok {
			return sc.Digits
		}
		return -1
	}
}

func (a *mirrorApp) interval() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Sync.Interval()
}

// cycle 执行一轮：对账 -> 序列化 -> 发送。
// 数据源失败只跳过本轮对应部分，快照仍按仓库现状发出。
func (a *mirrorApp) cycle(ctx context.Context) {
	a.mu.Lock()
	rep := a.reporter
	digits := a.digits
	identity := a.identity
	a.mu.Unlock()

	_ = a.syncer.ResyncOpenPositions(ctx)
	_ = a.syncer.CollectClosedDeals(ctx)

	snap := snapshot.Build(a.store, identity, digits)
	if res := rep.Send(ctx, snap); !res.OK {
		a.log.LogSend("cycle_send_failed", map[string]interface{}{
			"status": res.StatusCode,
			"error":  errString(res.Err),
		})
		a.alerts.SendError("collector send failed", map[string]interface{}{
			"status": res.StatusCode,
			"error":  errString(res.Err),
		})
	} else {
		a.alerts.Recovered("ERROR", "collector send failed")
	}
}

// runStream 维持变更推送连接，断开后退避重连。
// 所有连接共用调用方的 ticks 通道，重连不遗留任何 goroutine。
func runStream(ctx context.Context, url string, ticks chan struct{}, zlog *logger.Logger) {
	backoff := time.Second
	for ctx.Err() == nil {
		stream := venue.NewChangeStream(url)
		stream.Ticks = ticks
		err := stream.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		zlog.LogError(err, map[string]interface{}{"op": "change_stream"})
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// notifySystemd 上报就绪并按 WatchdogSec 喂狗；非 systemd 环境是空操作。
func notifySystemd(ctx context.Context) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
