package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
)

// threadPool marshals a dispatch call onto a worker goroutine, bounded by a
// buffered channel of tokens.
type threadPool struct {
	tokens chan struct{}
	wg     sync.WaitGroup
}

func newThreadPool(size int) *threadPool {
	if size <= 0 {
		size = 1
	}
	return &threadPool{tokens: make(chan struct{}, size)}
}

type threadResult struct {
	out flownode.NodeOutput
	err error
}

func (p *threadPool) run(ctx context.Context, node flownode.Node, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return flownode.NodeOutput{}, errs.Dispatch("pool_wait_cancelled", "context cancelled waiting for thread pool slot", ctx.Err())
	}
	p.wg.Add(1)

	resultCh := make(chan threadResult, 1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.tokens }()
		// The node body may still be cooperative internally; the worker
		// goroutine is its scheduler for the duration of this one call.
		defer func() {
			if r := recover(); r != nil {
				resultCh <- threadResult{err: errs.Dispatch("panic", fmt.Sprintf("node %s panicked on thread pool: %v", node.ID(), r), nil)}
			}
		}()
		out, err := node.Run(ctx, input)
		resultCh <- threadResult{out: out, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.out, res.err
	case <-ctx.Done():
		return flownode.NodeOutput{}, errs.Dispatch("cancelled", "context cancelled during thread pool dispatch", ctx.Err())
	}
}

func (p *threadPool) shutdown() {
	p.wg.Wait()
}
