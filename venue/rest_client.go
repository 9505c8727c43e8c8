package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RESTClient 通过场所桥接 API 拉取持仓与历史成交；HTTPClient 可注入 httptest。
type RESTClient struct {
	BaseURL    string
	APIKey     string
	AccountID  int64
	HTTPClient *http.Client
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

type positionPayload struct {
	Ticket       uint64  `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Type         int     `json:"type"`
	Volume       float64 `json:"volume"`
	OpenPrice    float64 `json:"openPrice"`
	CurrentPrice float64 `json:"price"`
	StopLoss     float64 `json:"sl"`
	TakeProfit   float64 `json:"tp"`
	OpenTime     int64   `json:"openTime"`
	Magic        int64   `json:"magic"`
	Comment      string  `json:"comment"`
}

type dealPayload struct {
	Deal       uint64  `json:"deal"`
	Entry      int     `json:"entry"` // 0=开仓腿 1=平仓腿 2+=出入金等
	Symbol     string  `json:"symbol"`
	Type       int     `json:"type"`
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"openPrice"`
	ClosePrice float64 `json:"closePrice"`
	Profit     float64 `json:"profit"`
	Swap       float64 `json:"swap"`
	Commission float64 `json:"commission"`
	CloseTime  int64   `json:"closeTime"`
}

type searchOpenResp struct {
	Success   bool              `json:"success"`
	Positions []json.RawMessage `json:"positions"`
}

type searchDealsResp struct {
	Success bool              `json:"success"`
	Deals   []json.RawMessage `json:"deals"`
}

// OpenPositions 调用 /api/Position/searchOpen 取当前全部持仓。
// 单条解析失败的持仓以零值 ticket 返回，由上层跳过，不中断整体枚举。
func (c *RESTClient) OpenPositions(ctx context.Context) ([]PositionRecord, error) {
	var out searchOpenResp
	if err := c.post(ctx, "/api/Position/searchOpen", map[string]interface{}{
		"accountId": c.AccountID,
	}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("position search rejected")
	}

	records := make([]PositionRecord, 0, len(out.Positions))
	for _, raw := range out.Positions {
		var p positionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			records = append(records, PositionRecord{})
			continue
		}
		records = append(records, PositionRecord{
			Ticket:       p.Ticket,
			Symbol:       p.Symbol,
			Side:         Side(p.Type),
			Volume:       p.Volume,
			OpenPrice:    p.OpenPrice,
			CurrentPrice: p.CurrentPrice,
			StopLoss:     p.StopLoss,
			TakeProfit:   p.TakeProfit,
			OpenTime:     time.Unix(p.OpenTime, 0).UTC(),
			Magic:        p.Magic,
			Comment:      p.Comment,
		})
	}
	return records, nil
}

// DealsRange 调用 /api/Trade/search 取时间段内的历史成交（场所按时间升序返回）。
func (c *RESTClient) DealsRange(ctx context.Context, from, to time.Time) ([]DealRecord, error) {
	var out searchDealsResp
	if err := c.post(ctx, "/api/Trade/search", map[string]interface{}{
		"accountId":      c.AccountID,
		"startTimestamp": from.Unix(),
		"endTimestamp":   to.Unix(),
	}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("deal search rejected")
	}

	records := make([]DealRecord, 0, len(out.Deals))
	for _, raw := range out.Deals {
		var d dealPayload
		if err := json.Unmarshal(raw, &d); err != nil {
			continue
		}
		records = append(records, DealRecord{
			Deal:       d.Deal,
			Role:       dealRole(d.Entry),
			Symbol:     d.Symbol,
			Side:       Side(d.Type),
			Volume:     d.Volume,
			OpenPrice:  d.OpenPrice,
			ClosePrice: d.ClosePrice,
			Profit:     d.Profit,
			Swap:       d.Swap,
			Commission: d.Commission,
			CloseTime:  time.Unix(d.CloseTime, 0).UTC(),
		})
	}
	return records, nil
}

func dealRole(entry int) DealRole {
	switch entry {
	case 0:
		return RoleEntry
	case 1:
		return RoleExit
	default:
		return RoleOther
	}
}

func (c *RESTClient) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
