package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPreservesOrder(t *testing.T) {
	// 任务 0 最后完成，输出顺序仍须等于输入顺序
	delays := []time.Duration{80 * time.Millisecond, 10 * time.Millisecond, 5 * time.Millisecond, 15 * time.Millisecond, 5 * time.Millisecond}

	results, err := Run(context.Background(), []int{0, 1, 2, 3, 4}, 2, func(ctx context.Context, index int, item int) (int, error) {
		time.Sleep(delays[index])
		return item * 10, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, r := range results {
		if r != i*10 {
			t.Errorf("results[%d] = %d, want %d", i, r, i*10)
		}
	}
}

func TestRunRespectsLimit(t *testing.T) {
	var active, peak atomic.Int64

	_, err := Run(context.Background(), make([]struct{}, 5), 2, func(ctx context.Context, index int, _ struct{}) (struct{}, error) {
		n := active.Add(1)
		// 更新观测到的最大并发
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestRunLimitAboveLength(t *testing.T) {
	var started sync.Map
	results, err := Run(context.Background(), []string{"a", "b", "c"}, 10, func(ctx context.Context, index int, item string) (string, error) {
		started.Store(index, true)
		return item + "!", nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 3 || results[0] != "a!" || results[2] != "c!" {
		t.Errorf("results = %v", results)
	}
	for i := 0; i < 3; i++ {
		if _, ok := started.Load(i); !ok {
			t.Errorf("task %d never started", i)
		}
	}
}

func TestRunReturnsFirstError(t *testing.T) {
	wantErr := errors.New("boom")
	var calls atomic.Int64

	_, err := Run(context.Background(), []int{0, 1, 2, 3, 4, 5, 6, 7}, 1, func(ctx context.Context, index int, item int) (int, error) {
		calls.Add(1)
		if index == 2 {
			return 0, wantErr
		}
		return item, nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
	// limit=1 时出错后不再认领后续任务
	if got := calls.Load(); got != 3 {
		t.Errorf("worker calls = %d, want 3", got)
	}
}

func TestRunEmptyItems(t *testing.T) {
	results, err := Run(context.Background(), []int(nil), 2, func(ctx context.Context, index int, item int) (int, error) {
		t.Fatal("worker should not be called")
		return 0, nil
	})
	if err != nil || len(results) != 0 {
		t.Errorf("Run() = (%v, %v), want empty results and nil error", results, err)
	}
}
