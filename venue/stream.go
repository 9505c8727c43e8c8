package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"trade-mirror-go/metrics"
)

// ChangeStream 订阅场所的交易事件推送，在每次状态变化时向 Ticks 发一个信号。
// 消息内容不做解析：推送只当作“该拉一次全量了”的触发器，权威数据仍走 REST 查询。
// 连接失败或中断由调用方决定是否重连；没有流时系统退化为纯定时器驱动。
type ChangeStream struct {
	URL    string
	Dialer *websocket.Dialer

	Ticks chan struct{}
}

func NewChangeStream(url string) *ChangeStream {
	return &ChangeStream{
		URL:    url,
		Dialer: websocket.DefaultDialer,
		Ticks:  make(chan struct{}, 1),
	}
}

// Run 连接并持续读取，直到出错或 ctx 取消。
// Ticks 带一格缓冲：连续多条推送在消费前合并为一次信号。
func (s *ChangeStream) Run(ctx context.Context) error {
	if s.URL == "" {
		return fmt.Errorf("stream url required")
	}
	conn, _, err := s.Dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// 监视协程随本次连接一起结束，不等到 ctx 取消
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		metrics.StreamEvents.Inc()
		select {
		case s.Ticks <- struct{}{}:
		default:
			// 上一个信号还没被消费，合并
		}
	}
}
