// Package metrics provides Prometheus metrics for the trade mirror
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OpenPositions 当前持仓镜像条数
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_open_positions",
		Help: "当前持仓镜像条数",
	})

	// ClosedDeals 已平仓成交镜像条数（按 online/offline 来源区分）
	ClosedDeals = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mirror_closed_deals",
		Help: "已平仓成交镜像条数",
	}, []string{"origin"})

	// SyncCycles 同步周期执行次数
	SyncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_sync_cycles_total",
		Help: "同步周期执行次数",
	}, []string{"kind"})

	// SyncErrors 数据源查询失败次数
	SyncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_sync_errors_total",
		Help: "数据源查询失败次数",
	}, []string{"kind"})

	// SyncDuration 同步周期耗时
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mirror_sync_duration_seconds",
		Help:    "同步周期耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// SnapshotBytes 最近一次快照大小
	SnapshotBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_snapshot_bytes",
		Help: "最近一次快照大小（字节）",
	})

	// SendTotal 快照发送次数（按结果区分）
	SendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_send_total",
		Help: "快照发送次数",
	}, []string{"result"})

	// SendLatency 快照发送耗时
	SendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirror_send_latency_seconds",
		Help:    "快照发送耗时",
		Buckets: prometheus.DefBuckets,
	})

	// ProbeTotal 健康探测次数（按结果区分）
	ProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_probe_total",
		Help: "健康探测次数",
	}, []string{"result"})

	// StreamEvents 变更推送事件数
	StreamEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirror_stream_events_total",
		Help: "变更推送事件数",
	})
)

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
