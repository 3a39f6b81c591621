package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shrek82/jpool/config"
	"github.com/shrek82/jpool/conn"
	"github.com/shrek82/jpool/logger"
	"github.com/shrek82/jpool/middleware"
	"github.com/shrek82/jpool/pool"
)

// bench 描述一次插入测试
type bench struct {
	cfg     config.Config
	log     logger.Logger
	stmt    string
	name    string
	sex     string
	rows    uint32
	workers uint32
	// slow 为慢语句日志阈值，breaker 为熔断前允许的连续建连失败次数 (0 表示不启用)
	slow    time.Duration
	breaker int

	// maxRetries 为单行插入获取连接超时后的最大重试次数
	maxRetries uint64
}

type result struct {
	inserted uint64
	failed   uint64
	retries  uint64
	stats    *pool.Stats
}

// share 把 rows 平均分给 workers，余数分给前面的 worker
func share(rows, workers, i uint32) uint32 {
	n := rows / workers
	if i < rows%workers {
		n++
	}
	return n
}

func (b *bench) params() []conn.Param {
	return []conn.Param{conn.String(b.name), conn.Enum(b.sex)}
}

// dialer 按驱动名创建 Dialer，并装上中间件
func (b *bench) dialer() (conn.Dialer, error) {
	d, err := conn.Open(b.cfg.Driver, b.log)
	if err != nil {
		return nil, err
	}
	d = middleware.Wrap(d, middleware.NewTracing(), middleware.NewSlowLog(b.slow, b.log))
	if b.breaker > 0 {
		d = middleware.NewCircuitBreaker(d, b.breaker, time.Second)
	}
	return d, nil
}

// fanOut 启动 workers 个 goroutine，每个执行 share 行插入
func (b *bench) fanOut(ctx context.Context, insert func(ctx context.Context) (retries uint64, err error)) result {
	var inserted, failed, retries atomic.Uint64
	var wg sync.WaitGroup
	for i := uint32(0); i < b.workers; i++ {
		wg.Add(1)
		go func(id, n uint32) {
			defer wg.Done()
			ctx := middleware.WithTrace(ctx, map[string]any{"worker": id})
			for j := uint32(0); j < n; j++ {
				if ctx.Err() != nil {
					return
				}
				r, err := insert(ctx)
				retries.Add(r)
				if err != nil {
					failed.Add(1)
					b.log.Error("insert failed: %v", err)
					continue
				}
				inserted.Add(1)
			}
		}(i, share(b.rows, b.workers, i))
	}
	wg.Wait()
	return result{inserted: inserted.Load(), failed: failed.Load(), retries: retries.Load()}
}

// runWithoutPool 每次插入都新建并关闭一个连接
func (b *bench) runWithoutPool(ctx context.Context) (result, error) {
	d, err := b.dialer()
	if err != nil {
		return result{}, err
	}
	target := b.cfg.Target()
	res := b.fanOut(ctx, func(ctx context.Context) (uint64, error) {
		c, err := d.Dial(ctx, target)
		if err != nil {
			return 0, err
		}
		defer c.Close()
		return 0, c.Execute(ctx, b.stmt, b.params()...)
	})
	return res, ctx.Err()
}

// runWithPool 从连接池获取连接插入，获取超时由调用方重试，最多 maxRetries 次
func (b *bench) runWithPool(ctx context.Context, p *pool.Pool) (result, error) {
	res := b.fanOut(ctx, func(ctx context.Context) (uint64, error) {
		var retries uint64
		for {
			err := p.Do(ctx, func(h *pool.Handle) error {
				return h.Execute(ctx, b.stmt, b.params()...)
			})
			if !errors.Is(err, pool.ErrAcquireTimeout) {
				return retries, err
			}
			if retries >= b.maxRetries {
				return retries, fmt.Errorf("gave up after %d retries: %w", retries, err)
			}
			retries++
		}
	})
	s := p.Stats()
	res.stats = &s
	return res, ctx.Err()
}
