// Package venue 定义外部交易场所（持仓/历史数据源）的数据类型与查询接口。
// 本系统只读：从不下单、改单或撤单。
package venue

import (
	"context"
	"time"
)

// Side 持仓方向。线上协议用整数表示：0=Buy 1=Sell。
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// DealRole 历史成交记录的语义角色。只有 RoleExit（平仓腿）会进入镜像。
type DealRole int

const (
	RoleEntry DealRole = iota // 开仓腿
	RoleExit                  // 平仓腿
	RoleOther                 // 出入金/调整等非交易记录
)

// PositionRecord 数据源返回的当前持仓。字段与镜像模型一一对应。
type PositionRecord struct {
	Ticket       uint64
	Symbol       string
	Side         Side
	Volume       float64
	OpenPrice    float64
	CurrentPrice float64
	StopLoss     float64 // 0 表示未设置
	TakeProfit   float64 // 0 表示未设置
	OpenTime     time.Time
	Magic        int64
	Comment      string
}

// DealRecord 数据源返回的历史成交。OpenPrice 可能无法回溯，为 0。
type DealRecord struct {
	Deal       uint64
	Role       DealRole
	Symbol     string
	Side       Side
	Volume     float64
	OpenPrice  float64
	ClosePrice float64
	Profit     float64
	Swap       float64
	Commission float64
	CloseTime  time.Time
}

// Source 拉取式查询接口。数据源是权威的：本系统不校验、不修正其返回内容。
type Source interface {
	// OpenPositions 返回当前全部持仓。单条解析失败以 ok=false 跳过，不中断整体枚举。
	OpenPositions(ctx context.Context) ([]PositionRecord, error)
	// DealsRange 返回 [from, to] 时间段内的历史成交，按时间升序。
	DealsRange(ctx context.Context, from, to time.Time) ([]DealRecord, error)
}
