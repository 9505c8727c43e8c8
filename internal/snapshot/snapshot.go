// Package snapshot 把镜像仓库渲染为发往采集端的 JSON 快照。
// 字段格式是线上契约的一部分，必须逐字节稳定：
//   - 整数 id：十进制原样
//   - 手数/盈亏/库存费/手续费：固定 2 位小数
//   - 价格（开/现/平、止损、止盈）：按品种报价精度（digits）定位小数
//   - 时间戳：epoch 秒
//   - 字符串：转义 " \ 换行 回车 制表符，其余字节（含非 ASCII）原样透传
//
// 数组顺序即仓库插入序，输入不变则输出逐字节不变。
package snapshot

import (
	"strconv"
	"strings"
	"time"

	"trade-mirror-go/internal/store"
)

// Mode 上报身份的角色标签，线上只有两个字面量。
type Mode string

const (
	ModeSender   Mode = "Sender"
	ModeReceiver Mode = "Receiver"
)

// Identity 快照头部的身份信息。
type Identity struct {
	ID   int64
	Mode Mode
}

// DigitsFunc 返回品种的报价小数位。未知品种返回负数时采用 DefaultDigits。
type DigitsFunc func(symbol string) int

// DefaultDigits 查不到品种精度时的兜底小数位。
const DefaultDigits = 5

// Build 渲染当前仓库状态。只读，不做任何 I/O。
// 已平仓成交按采集来源切成 closed_online / closed_offline 两个数组，
// 与采集端 ingest 的字段约定一致。
func Build(st *store.Store, id Identity, digits DigitsFunc) string {
	var b strings.Builder
	b.Grow(256)

	b.WriteString(`{"id":`)
	b.WriteString(strconv.FormatInt(id.ID, 10))
	b.WriteString(`,"mode":`)
	writeString(&b, string(id.Mode))

	b.WriteString(`,"open":[`)
	for i, p := range st.OpenSnapshot() {
		if i > 0 {
			b.WriteByte(',')
		}
		writeOpen(&b, p, digits)
	}
	b.WriteByte(']')

	closed := st.ClosedSnapshot()
	b.WriteString(`,"closed_online":[`)
	writeClosedByOrigin(&b, closed, store.OriginOnline, digits)
	b.WriteString(`],"closed_offline":[`)
	writeClosedByOrigin(&b, closed, store.OriginOffline, digits)
	b.WriteString(`]}`)

	return b.String()
}

func writeOpen(b *strings.Builder, p store.OpenPosition, digits DigitsFunc) {
	d := symbolDigits(digits, p.Symbol)
	b.WriteString(`{"ticket":`)
	b.WriteString(strconv.FormatUint(p.Ticket, 10))
	b.WriteString(`,"symbol":`)
	writeString(b, p.Symbol)
	b.WriteString(`,"type":`)
	b.WriteString(strconv.Itoa(int(p.Side)))
	b.WriteString(`,"volume":`)
	b.WriteString(fixed(p.Volume, 2))
	b.WriteString(`,"openPrice":`)
	b.WriteString(fixed(p.OpenPrice, d))
	b.WriteString(`,"price":`)
	b.WriteString(fixed(p.CurrentPrice, d))
	b.WriteString(`,"sl":`)
	b.WriteString(fixed(p.StopLoss, d))
	b.WriteString(`,"tp":`)
	b.WriteString(fixed(p.TakeProfit, d))
	b.WriteString(`,"magic":`)
	b.WriteString(strconv.FormatInt(p.Magic, 10))
	b.WriteString(`,"comment":`)
	writeString(b, p.Comment)
	b.WriteByte('}')
}

func writeClosedByOrigin(b *strings.Builder, deals []store.ClosedDeal, origin store.Origin, digits DigitsFunc) {
	first := true
	for _, d := range deals {
		if d.Origin != origin {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		writeClosed(b, d, digits)
	}
}

func writeClosed(b *strings.Builder, d store.ClosedDeal, digits DigitsFunc) {
	dg := symbolDigits(digits, d.Symbol)
	b.WriteString(`{"deal":`)
	b.WriteString(strconv.FormatUint(d.Deal, 10))
	b.WriteString(`,"symbol":`)
	writeString(b, d.Symbol)
	b.WriteString(`,"type":`)
	b.WriteString(strconv.Itoa(int(d.Side)))
	b.WriteString(`,"volume":`)
	b.WriteString(fixed(d.Volume, 2))
	b.WriteString(`,"openPrice":`)
	b.WriteString(fixed(d.OpenPrice, dg))
	b.WriteString(`,"closePrice":`)
	b.WriteString(fixed(d.ClosePrice, dg))
	b.WriteString(`,"profit":`)
	b.WriteString(fixed(d.Profit, 2))
	b.WriteString(`,"swap":`)
	b.WriteString(fixed(d.Swap, 2))
	b.WriteString(`,"commission":`)
	b.WriteString(fixed(d.Commission, 2))
	b.WriteString(`,"closeTime":`)
	b.WriteString(epoch(d.CloseTime))
	b.WriteByte('}')
}

func symbolDigits(digits DigitsFunc, symbol string) int {
	if digits != nil {
		if d := digits(symbol); d >= 0 {
			return d
		}
	}
	return DefaultDigits
}

func fixed(v float64, digits int) string {
	return strconv.FormatFloat(v, 'f', digits, 64)
}

func epoch(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// writeString 输出带引号的字符串字面量。
// 只转义会破坏引号包裹的五个字符，其余字节原样透传。
func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}
