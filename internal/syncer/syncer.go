// Package syncer 负责把外部数据源的持仓与历史成交对账进镜像仓库。
package syncer

import (
	"context"
	"time"

	"trade-mirror-go/infrastructure/logger"
	"trade-mirror-go/internal/store"
	"trade-mirror-go/metrics"
	"trade-mirror-go/venue"
)

const (
	// DefaultLookback 历史成交的回看窗口。窗口外的成交不参与对账。
	DefaultLookback = 7 * 24 * time.Hour
	// DefaultMaxDealsScan 每个周期最多扫描的历史条数（取窗口内最新的一段）。
	DefaultMaxDealsScan = 100
)

// Config 同步参数。
type Config struct {
	Lookback     time.Duration
	MaxDealsScan int
}

// Syncer 对账器：持仓走全量替换，历史成交走有界增量追加。
// 非并发安全，调用方负责串行化（与仓库同一个单写者约定）。
type Syncer struct {
	source venue.Source
	store  *store.Store
	log    *logger.Logger

	lookback time.Duration
	maxScan  int

	// 首次成功采集前记录的成交标记为 offline（断档补齐），之后为 online。
	bootstrapped bool

	// 可注入的时钟，测试用
	now func() time.Time
}

func New(source venue.Source, st *store.Store, log *logger.Logger, cfg Config) *Syncer {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.MaxDealsScan <= 0 {
		cfg.MaxDealsScan = DefaultMaxDealsScan
	}
	return &Syncer{
		source:   source,
		store:    st,
		log:      log,
		lookback: cfg.Lookback,
		maxScan:  cfg.MaxDealsScan,
		now:      time.Now,
	}
}

// ResyncOpenPositions 用数据源当前持仓全量重建镜像。
// 数据源是权威的：上一轮存在而本轮未报告的持仓直接丢弃，不做差量合并。
// 查询失败时不触碰仓库，留待下个周期自然重试。
func (s *Syncer) ResyncOpenPositions(ctx context.Context) error {
	started := s.now()
	positions, err := s.source.OpenPositions(ctx)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("open").Inc()
		if s.log != nil {
			s.log.LogError(err, map[string]interface{}{"op": "resync_open"})
		}
		return err
	}

	s.store.ClearOpen()
	skipped := 0
	for _, p := range positions {
		// 单条解析失败的持仓由数据源以零值 ticket 标记，跳过继续
		if p.Ticket == 0 {
			skipped++
			continue
		}
		s.store.UpsertOpen(store.OpenPosition{
			Ticket:       p.Ticket,
			Symbol:       p.Symbol,
			Side:         p.Side,
			Volume:       p.Volume,
			OpenPrice:    p.OpenPrice,
			CurrentPrice: p.CurrentPrice,
			StopLoss:     p.StopLoss,
			TakeProfit:   p.TakeProfit,
			OpenTime:     p.OpenTime,
			Magic:        p.Magic,
			Comment:      p.Comment,
		})
	}

	metrics.SyncCycles.WithLabelValues("open").Inc()
	metrics.SyncDuration.WithLabelValues("open").Observe(s.now().Sub(started).Seconds())
	if s.log != nil {
		s.log.LogSync("resync_open", map[string]interface{}{
			"reported": len(positions),
			"kept":     s.store.CountOpen(),
			"skipped":  skipped,
		})
	}
	return nil
}

// CollectClosedDeals 扫描回看窗口内最新的 maxScan 条历史记录，把其中的平仓腿并入镜像。
// 窗口内更老的记录静默跳过，不算错误。历史查询失败同样不触碰仓库。
func (s *Syncer) CollectClosedDeals(ctx context.Context) error {
	started := s.now()
	to := s.now()
	from := to.Add(-s.lookback)

	deals, err := s.source.DealsRange(ctx, from, to)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("closed").Inc()
		if s.log != nil {
			s.log.LogError(err, map[string]interface{}{"op": "collect_closed"})
		}
		return err
	}

	origin := store.OriginOnline
	if !s.bootstrapped {
		origin = store.OriginOffline
	}

	start := len(deals) - s.maxScan
	if start < 0 {
		start = 0
	}
	added := 0
	for _, d := range deals[start:] {
		if d.Deal == 0 {
			continue
		}
		// 只记录平仓腿；开仓腿与出入金等非交易记录一律忽略
		if d.Role != venue.RoleExit {
			continue
		}
		rec := store.ClosedDeal{
			Deal:       d.Deal,
			Symbol:     d.Symbol,
			Side:       d.Side,
			Volume:     d.Volume,
			OpenPrice:  d.OpenPrice, // 数据源无法回溯开仓价时为 0
			ClosePrice: d.ClosePrice,
			Profit:     d.Profit,
			Swap:       d.Swap,
			Commission: d.Commission,
			CloseTime:  d.CloseTime,
			Origin:     origin,
		}
		// 已记录过的成交保持首次采集时的来源标记，避免重复扫描在两个分区间搬移
		if prev, ok := s.store.GetClosed(d.Deal); ok {
			rec.Origin = prev.Origin
		}
		s.store.UpsertClosed(rec)
		added++
	}
	s.bootstrapped = true

	metrics.SyncCycles.WithLabelValues("closed").Inc()
	metrics.SyncDuration.WithLabelValues("closed").Observe(s.now().Sub(started).Seconds())
	if s.log != nil {
		s.log.LogSync("collect_closed", map[string]interface{}{
			"in_window": len(deals),
			"scanned":   len(deals) - start,
			"upserted":  added,
			"origin":    origin.String(),
		})
	}
	return nil
}
