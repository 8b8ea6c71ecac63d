// Package pool 提供一个保序的有界并发执行器。
package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// Run 以最多 limit 个并发 worker 执行 items 中的所有任务，
// 返回的 results[i] 恒对应 items[i]，与完成顺序无关。
//
// 实现模型：一个共享游标被至多 limit 个 worker 认领，
// 每个 worker 循环认领下一个未认领的下标直到取尽后退出，
// 所有 worker 退出后调用才返回。
//
// worker 返回的错误不会被吞掉：任一任务出错即停止认领新任务，
// 排空在途任务后返回第一个错误。需要容忍部分失败的调用方
// 应自行把 worker 包装成永不出错（把失败映射为结果里的状态）。
func Run[T, R any](ctx context.Context, items []T, limit int, worker func(ctx context.Context, index int, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	var (
		cursor   atomic.Int64
		failed   atomic.Bool
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if failed.Load() || ctx.Err() != nil {
					return
				}
				i := int(cursor.Add(1)) - 1
				if i >= len(items) {
					return
				}
				r, err := worker(ctx, i, items[i])
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						failed.Store(true)
					})
					return
				}
				results[i] = r
			}
		}()
	}

	wg.Wait()
	if firstErr != nil {
		return results, firstErr
	}
	return results, ctx.Err()
}
