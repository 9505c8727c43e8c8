package store

import (
	"sync"
	"testing"
)

// TestStore_ConcurrentUpserts 测试并发写入的安全性。
// 核心约定是单写者串行，但仓库自身的锁要保证混用读写不撕裂。
func TestStore_ConcurrentUpserts(t *testing.T) {
	st := New(nil)

	var wg sync.WaitGroup
	operations := 100

	// 并发写入持仓
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				st.UpsertOpen(OpenPosition{
					Ticket: uint64(workerID*1000 + j),
					Symbol: "EURUSD",
					Volume: 1.0,
				})
			}
		}(i)
	}

	// 并发读取
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = st.CountOpen()
				_ = st.FindOpen(uint64(j))
				_ = st.OpenSnapshot()
			}
		}()
	}

	wg.Wait()

	if n := st.CountOpen(); n != 5*operations {
		t.Errorf("expected %d positions, got %d", 5*operations, n)
	}
}

// TestStore_MixedConcurrentOperations 测试混合并发操作
func TestStore_MixedConcurrentOperations(t *testing.T) {
	st := New(nil)

	var wg sync.WaitGroup
	operations := 50

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < operations; i++ {
			st.UpsertOpen(OpenPosition{Ticket: uint64(i + 1)})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < operations; i++ {
			st.UpsertClosed(ClosedDeal{Deal: uint64(i + 1)})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < operations; i++ {
			st.RemoveOpen(uint64(i + 1))
		}
	}()

	// 并发读取所有状态
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = st.CountOpen()
				_ = st.CountClosed()
				_ = st.OpenSnapshot()
				_ = st.ClosedSnapshot()
				_, _ = st.GetClosed(uint64(j))
			}
		}()
	}

	wg.Wait()

	if n := st.CountClosed(); n != operations {
		t.Errorf("expected %d closed deals, got %d", operations, n)
	}
}
