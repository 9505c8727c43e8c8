package snapshot

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"trade-mirror-go/internal/store"
	"trade-mirror-go/venue"
)

func digits5(string) int { return 5 }

func TestBuildSingleOpenPosition(t *testing.T) {
	st := store.New(nil)
	st.UpsertOpen(store.OpenPosition{
		Ticket:       100,
		Symbol:       "EURUSD",
		Side:         venue.Buy,
		Volume:       1.0,
		OpenPrice:    1.105,
		CurrentPrice: 1.106,
		Magic:        7,
	})

	got := Build(st, Identity{ID: 1, Mode: ModeSender}, digits5)

	want := `{"id":1,"mode":"Sender","open":[` +
		`{"ticket":100,"symbol":"EURUSD","type":0,"volume":1.00,` +
		`"openPrice":1.10500,"price":1.10600,"sl":0.00000,"tp":0.00000,` +
		`"magic":7,"comment":""}` +
		`],"closed_online":[],"closed_offline":[]}`
	if got != want {
		t.Fatalf("snapshot mismatch:\n got  %s\n want %s", got, want)
	}
}

func TestBuildIsValidJSONAndDeterministic(t *testing.T) {
	st := store.New(nil)
	st.UpsertOpen(store.OpenPosition{Ticket: 1, Symbol: "XAUUSD", Side: venue.Sell, Volume: 0.5, Comment: "hedge"})
	st.UpsertClosed(store.ClosedDeal{Deal: 10, Symbol: "XAUUSD", Profit: -3.456, CloseTime: time.Unix(1724500000, 0)})

	first := Build(st, Identity{ID: 42, Mode: ModeReceiver}, nil)
	second := Build(st, Identity{ID: 42, Mode: ModeReceiver}, nil)
	if first != second {
		t.Fatalf("serialization not deterministic:\n%s\n%s", first, second)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(first), &doc); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v\n%s", err, first)
	}
	if doc["mode"] != "Receiver" {
		t.Fatalf("unexpected mode: %v", doc["mode"])
	}
}

func TestStringEscapingRoundTrip(t *testing.T) {
	comment := "a\"b\\c\nd\re\tf — 非ASCII"
	st := store.New(nil)
	st.UpsertOpen(store.OpenPosition{Ticket: 1, Symbol: "EURUSD", Comment: comment})

	snap := Build(st, Identity{ID: 1, Mode: ModeSender}, digits5)

	var doc struct {
		Open []struct {
			Comment string `json:"comment"`
		} `json:"open"`
	}
	if err := json.Unmarshal([]byte(snap), &doc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, snap)
	}
	if len(doc.Open) != 1 || doc.Open[0].Comment != comment {
		t.Fatalf("escape round trip failed: %q", doc.Open[0].Comment)
	}
}

func TestClosedDealsPartitionedByOrigin(t *testing.T) {
	st := store.New(nil)
	st.UpsertClosed(store.ClosedDeal{Deal: 1, Symbol: "EURUSD", Origin: store.OriginOffline, CloseTime: time.Unix(100, 0)})
	st.UpsertClosed(store.ClosedDeal{Deal: 2, Symbol: "EURUSD", Origin: store.OriginOnline, CloseTime: time.Unix(200, 0)})
	st.UpsertClosed(store.ClosedDeal{Deal: 3, Symbol: "EURUSD", Origin: store.OriginOnline, CloseTime: time.Unix(300, 0)})

	snap := Build(st, Identity{ID: 1, Mode: ModeSender}, digits5)

	var doc struct {
		Online []struct {
			Deal uint64 `json:"deal"`
		} `json:"closed_online"`
		Offline []struct {
			Deal uint64 `json:"deal"`
		} `json:"closed_offline"`
	}
	if err := json.Unmarshal([]byte(snap), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Online) != 2 || doc.Online[0].Deal != 2 || doc.Online[1].Deal != 3 {
		t.Fatalf("online partition wrong: %+v", doc.Online)
	}
	if len(doc.Offline) != 1 || doc.Offline[0].Deal != 1 {
		t.Fatalf("offline partition wrong: %+v", doc.Offline)
	}
}

func TestFixedPointFormatting(t *testing.T) {
	st := store.New(nil)
	st.UpsertClosed(store.ClosedDeal{
		Deal:       7,
		Symbol:     "XAUUSD",
		Side:       venue.Sell,
		Volume:     1,
		ClosePrice: 3610.1,
		Profit:     20,
		Swap:       -0.126,
		Commission: -4,
		CloseTime:  time.Unix(1724500000, 0),
		Origin:     store.OriginOnline,
	})

	snap := Build(st, Identity{ID: 1, Mode: ModeSender}, func(string) int { return 2 })

	for _, frag := range []string{
		`"volume":1.00`,
		`"closePrice":3610.10`,
		`"profit":20.00`,
		`"swap":-0.13`,
		`"commission":-4.00`,
		`"closeTime":1724500000`,
	} {
		if !strings.Contains(snap, frag) {
			t.Fatalf("missing %s in %s", frag, snap)
		}
	}
}

func TestUnknownSymbolFallsBackToDefaultDigits(t *testing.T) {
	st := store.New(nil)
	st.UpsertOpen(store.OpenPosition{Ticket: 1, Symbol: "BTCUSD", CurrentPrice: 2})

	lookup := func(symbol string) int {
		if symbol == "EURUSD" {
			return 5
		}
		return -1
	}
	snap := Build(st, Identity{ID: 1, Mode: ModeSender}, lookup)
	if !strings.Contains(snap, `"price":2.00000`) {
		t.Fatalf("expected default %d digits: %s", DefaultDigits, snap)
	}
}

func TestZeroCloseTimeSerializesAsZero(t *testing.T) {
	st := store.New(nil)
	st.UpsertClosed(store.ClosedDeal{Deal: 1, Symbol: "EURUSD", Origin: store.OriginOnline})

	snap := Build(st, Identity{ID: 1, Mode: ModeSender}, digits5)
	if !strings.Contains(snap, `"closeTime":0`) {
		t.Fatalf("zero time must serialize as 0: %s", snap)
	}
}
