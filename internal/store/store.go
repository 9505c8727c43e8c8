package store

import (
	"sync"
	"time"

	"trade-mirror-go/metrics"
	"trade-mirror-go/venue"
)

// NotFound 查找未命中时返回的下标。不是错误，调用方按值分支。
const NotFound = -1

// EventSink 结构化事件回调，由上层注入（通常接 zap）。
type EventSink func(string, map[string]interface{})

// Origin 标记已平仓成交的采集来源：进程在线期间实时采集（online），
// 或启动后补齐断档期间的历史（offline）。
type Origin int

const (
	OriginOnline Origin = iota
	OriginOffline
)

func (o Origin) String() string {
	if o == OriginOffline {
		return "offline"
	}
	return "online"
}

// OpenPosition 当前持仓镜像记录，key 为场所分配的 ticket。
type OpenPosition struct {
	Ticket       uint64
	Symbol       string
	Side         venue.Side
	Volume       float64
	OpenPrice    float64
	CurrentPrice float64
	StopLoss     float64
	TakeProfit   float64
	OpenTime     time.Time
	Magic        int64
	Comment      string
}

// ClosedDeal 已平仓成交镜像记录，key 为 deal id。OpenPrice 无法回溯时为 0。
type ClosedDeal struct {
	Deal       uint64
	Symbol     string
	Side       venue.Side
	Volume     float64
	OpenPrice  float64
	ClosePrice float64
	Profit     float64
	Swap       float64
	Commission float64
	CloseTime  time.Time
	Origin     Origin
}

// Store 维护两组互相独立的插入序集合（持仓、已平仓成交）。
// 所有变更只经由本类型的方法；序列化读取与变更由调用方串行化（单写者约定）。
// 槽位语义：覆盖写保持原位置，新 key 追加到尾部，删除后压缩保持相对顺序。
type Store struct {
	mu sync.RWMutex

	open      []OpenPosition
	openIdx   map[uint64]int
	closed    []ClosedDeal
	closedIdx map[uint64]int

	sink EventSink
}

func New(sink EventSink) *Store {
	return &Store{
		openIdx:   make(map[uint64]int),
		closedIdx: make(map[uint64]int),
		sink:      sink,
	}
}

// FindOpen 按 ticket 查找持仓下标，未命中返回 NotFound。
func (s *Store) FindOpen(ticket uint64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.openIdx[ticket]; ok {
		return i
	}
	return NotFound
}

// FindClosed 按 deal 查找已平仓成交下标，未命中返回 NotFound。
func (s *Store) FindClosed(deal uint64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.closedIdx[deal]; ok {
		return i
	}
	return NotFound
}

// UpsertOpen 按 ticket 插入或整条覆盖持仓。记录作为一个整体原子更新。
func (s *Store) UpsertOpen(p OpenPosition) {
	s.mu.Lock()
	if i, ok := s.openIdx[p.Ticket]; ok {
		s.open[i] = p
	} else {
		s.openIdx[p.Ticket] = len(s.open)
		s.open = append(s.open, p)
	}
	n := len(s.open)
	s.mu.Unlock()
	metrics.OpenPositions.Set(float64(n))
}

// RemoveOpen 删除指定 ticket 的持仓，剩余记录前移保持相对顺序。返回是否发生删除。
func (s *Store) RemoveOpen(ticket uint64) bool {
	s.mu.Lock()
	i, ok := s.openIdx[ticket]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.open = append(s.open[:i], s.open[i+1:]...)
	delete(s.openIdx, ticket)
	for j := i; j < len(s.open); j++ {
		s.openIdx[s.open[j].Ticket] = j
	}
	n := len(s.open)
	s.mu.Unlock()
	metrics.OpenPositions.Set(float64(n))
	s.logEvent("position_removed", map[string]interface{}{
		"ticket":     ticket,
		"open_count": n,
	})
	return true
}

// ClearOpen 清空持仓集合（全量重建前调用）。
func (s *Store) ClearOpen() {
	s.mu.Lock()
	s.open = s.open[:0]
	s.openIdx = make(map[uint64]int)
	s.mu.Unlock()
	metrics.OpenPositions.Set(0)
}

// UpsertClosed 按 deal 插入或整条覆盖已平仓成交。
func (s *Store) UpsertClosed(d ClosedDeal) {
	s.mu.Lock()
	i, ok := s.closedIdx[d.Deal]
	prevOrigin := d.Origin
	if ok {
		prevOrigin = s.closed[i].Origin
		s.closed[i] = d
	} else {
		s.closedIdx[d.Deal] = len(s.closed)
		s.closed = append(s.closed, d)
	}
	count := s.countClosedByOriginLocked(d.Origin)
	prevCount := -1
	if prevOrigin != d.Origin {
		prevCount = s.countClosedByOriginLocked(prevOrigin)
	}
	s.mu.Unlock()
	metrics.ClosedDeals.WithLabelValues(d.Origin.String()).Set(float64(count))
	// 覆盖写改变来源时，旧来源的计数同步回落
	if prevCount >= 0 {
		metrics.ClosedDeals.WithLabelValues(prevOrigin.String()).Set(float64(prevCount))
	}
	if !ok {
		s.logEvent("deal_recorded", map[string]interface{}{
			"deal":   d.Deal,
			"symbol": d.Symbol,
			"side":   d.Side.String(),
			"profit": d.Profit,
			"origin": d.Origin.String(),
		})
	}
}

// RemoveClosed 删除指定 deal 的成交记录。
// 同步器从不自动调用，仅供外部触发的清理使用。
func (s *Store) RemoveClosed(deal uint64) bool {
	s.mu.Lock()
	i, ok := s.closedIdx[deal]
	if !ok {
		s.mu.Unlock()
		return false
	}
	origin := s.closed[i].Origin
	s.closed = append(s.closed[:i], s.closed[i+1:]...)
	delete(s.closedIdx, deal)
	for j := i; j < len(s.closed); j++ {
		s.closedIdx[s.closed[j].Deal] = j
	}
	count := s.countClosedByOriginLocked(origin)
	s.mu.Unlock()
	metrics.ClosedDeals.WithLabelValues(origin.String()).Set(float64(count))
	return true
}

// GetOpen 按 ticket 返回持仓副本。
func (s *Store) GetOpen(ticket uint64) (OpenPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.openIdx[ticket]; ok {
		return s.open[i], true
	}
	return OpenPosition{}, false
}

// GetClosed 按 deal 返回成交副本。
func (s *Store) GetClosed(deal uint64) (ClosedDeal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.closedIdx[deal]; ok {
		return s.closed[i], true
	}
	return ClosedDeal{}, false
}

// OpenSnapshot 返回持仓集合的副本，顺序为插入序。
func (s *Store) OpenSnapshot() []OpenPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OpenPosition, len(s.open))
	copy(out, s.open)
	return out
}

// ClosedSnapshot 返回已平仓成交集合的副本，顺序为插入序。
func (s *Store) ClosedSnapshot() []ClosedDeal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ClosedDeal, len(s.closed))
	copy(out, s.closed)
	return out
}

// CountOpen 当前持仓数。
func (s *Store) CountOpen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.open)
}

// CountClosed 当前已平仓成交总数。
func (s *Store) CountClosed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.closed)
}

func (s *Store) countClosedByOriginLocked(origin Origin) int {
	n := 0
	for _, d := range s.closed {
		if d.Origin == origin {
			n++
		}
	}
	return n
}

func (s *Store) logEvent(event string, fields map[string]interface{}) {
	if s == nil || s.sink == nil {
		return
	}
	s.sink(event, fields)
}
