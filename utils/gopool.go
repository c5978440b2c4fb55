package utils

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/projecteru2/barge/log"
)

// GoroutinePool runs at most max funcs at once, Go blocks when full
type GoroutinePool struct {
	pool *ants.PoolWithFunc
	wg   sync.WaitGroup
}

// NewGoroutinePool .
func NewGoroutinePool(max int) (*GoroutinePool, error) {
	if max < 1 {
		max = 1
	}
	pool, err := ants.NewPoolWithFunc(max, func(i any) {
		defer log.SentryDefer()
		f, _ := i.(func())
		f()
	})
	if err != nil {
		return nil, err
	}
	return &GoroutinePool{pool: pool}, nil
}

// Go submits f
func (p *GoroutinePool) Go(ctx context.Context, f func()) {
	p.wg.Add(1)
	if err := p.pool.Invoke(func() {
		defer p.wg.Done()
		f()
	}); err != nil {
		p.wg.Done()
		log.WithFunc("utils.GoroutinePool.Go").Error(ctx, err, "failed to submit")
	}
}

// Wait waits for every submitted func, then releases the pool
func (p *GoroutinePool) Wait(_ context.Context) {
	p.wg.Wait()
	p.pool.Release()
}
