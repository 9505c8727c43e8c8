// Package report 负责把快照投递到远端采集端。
// 单次发送、无重试、无排队：失败只上报给调用方，下个周期用最新快照自然覆盖。
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"trade-mirror-go/infrastructure/logger"
	"trade-mirror-go/metrics"
)

const (
	// DefaultTimeout 快照 POST 的超时。
	DefaultTimeout = 10 * time.Second
	// DefaultProbeTimeout 健康探测的超时，故意取短：探测只为诊断，不值得久等。
	DefaultProbeTimeout = 3 * time.Second
)

// Config 投递配置。
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	Enabled      bool          `yaml:"enabled"`
	Timeout      time.Duration `yaml:"timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// Result 单次发送的结果。OK 为最终结论，其余字段仅供诊断。
type Result struct {
	OK         bool
	StatusCode int
	Body       string
	Err        error
}

// Reporter 采集端客户端。HTTP 层可经 SetTransport 注入（httptest 场景）。
type Reporter struct {
	client *resty.Client
	cfg    Config
	log    *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Reporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Reporter{client: client, cfg: cfg, log: log}
}

// Client 暴露底层 resty 客户端，测试时用于改写目标地址。
func (r *Reporter) Client() *resty.Client {
	return r.client
}

// Send 把快照 POST 到采集端根路径。
// 成功判定：HTTP 200 且响应体 status 字段为 "ok"（结构化取值，不做子串扫描）。
// 失败时额外发一次健康探测，探测结果只进日志，不改变本次结论。
// 关闭上报时直接返回成功，不发生任何网络交互。
func (r *Reporter) Send(ctx context.Context, snap string) Result {
	if !r.cfg.Enabled {
		return Result{OK: true}
	}

	metrics.SnapshotBytes.Set(float64(len(snap)))
	started := time.Now()
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(snap).
		Post("/")
	metrics.SendLatency.Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.SendTotal.WithLabelValues("error").Inc()
		r.diagnose(ctx, err.Error())
		return Result{Err: err}
	}

	res := Result{
		StatusCode: resp.StatusCode(),
		Body:       resp.String(),
	}
	if resp.StatusCode() != 200 {
		metrics.SendTotal.WithLabelValues("fail").Inc()
		res.Err = fmt.Errorf("collector status %d", resp.StatusCode())
		r.diagnose(ctx, res.Err.Error())
		return res
	}
	if gjson.Get(res.Body, "status").String() != "ok" {
		metrics.SendTotal.WithLabelValues("fail").Inc()
		res.Err = fmt.Errorf("collector rejected payload: %s", res.Body)
		r.diagnose(ctx, res.Err.Error())
		return res
	}

	metrics.SendTotal.WithLabelValues("ok").Inc()
	res.OK = true
	if r.log != nil {
		r.log.LogSend("snapshot_sent", map[string]interface{}{
			"bytes":          len(snap),
			"open":           gjson.Get(res.Body, "received.open").Int(),
			"closed_online":  gjson.Get(res.Body, "received.closed_online").Int(),
			"closed_offline": gjson.Get(res.Body, "received.closed_offline").Int(),
		})
	}
	return res
}

// Probe 对 /health 做一次幂等只读探测。只用于诊断。
func (r *Reporter) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	resp, err := r.client.R().SetContext(pctx).Get("/health")
	if err != nil {
		metrics.ProbeTotal.WithLabelValues("error").Inc()
		return false
	}
	ok := resp.StatusCode() == 200 && gjson.Get(resp.String(), "status").String() == "ok"
	if ok {
		metrics.ProbeTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.ProbeTotal.WithLabelValues("fail").Inc()
	}
	return ok
}

// diagnose 发送失败后的一次性探测，区分“采集端整体不可达”和“本次请求被拒”。
func (r *Reporter) diagnose(ctx context.Context, reason string) {
	alive := r.Probe(ctx)
	if r.log != nil {
		r.log.LogSend("send_failed", map[string]interface{}{
			"reason":          reason,
			"collector_alive": alive,
		})
	}
}
