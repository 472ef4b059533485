// Package dispatch implements the Pool Dispatcher: a single dispatch(pool,
// node, input) operation that runs a node body on one of three execution
// substrates: cooperative, thread pool, or process pool.
package dispatch

import (
	"context"
	"time"

	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
)

// Dispatcher owns up to two lazily-created worker pools (bounded thread
// pool, bounded process pool) in addition to the cooperative async path.
type Dispatcher struct {
	threadPool  *threadPool
	processPool *processPool
}

// Config sizes the lazily-created pools.
type Config struct {
	ThreadPoolSize int
	// ProcessPoolSize is recorded by the process pool, which runs a single
	// worker subprocess whatever its value.
	ProcessPoolSize int
	// ProcessWorkerPath is the path to this same binary, re-invoked with the
	// hidden node-worker subcommand to serve process-pool calls.
	ProcessWorkerPath string
	ProcessWorkerArgs []string
}

// New constructs a Dispatcher. Pool workers spin up lazily on first dispatch
// to their substrate.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		threadPool:  newThreadPool(cfg.ThreadPoolSize),
		processPool: newProcessPool(cfg.ProcessPoolSize, cfg.ProcessWorkerPath, cfg.ProcessWorkerArgs),
	}
}

// Dispatch runs node.Run(input) on the named pool.
func (d *Dispatcher) Dispatch(ctx context.Context, pool flownode.Pool, node flownode.Node, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	switch pool {
	case flownode.PoolAsync, "":
		return node.Run(ctx, input)
	case flownode.PoolThread:
		return d.threadPool.run(ctx, node, input)
	case flownode.PoolProcess:
		return d.processPool.run(ctx, node, input)
	default:
		return flownode.NodeOutput{}, errs.Dispatch("unknown_pool", "unknown execution pool: "+string(pool), nil)
	}
}

// Shutdown joins both pools, waiting up to grace for in-flight work.
func (d *Dispatcher) Shutdown(grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	threadDone := make(chan struct{})
	go func() {
		d.threadPool.shutdown()
		close(threadDone)
	}()
	var threadErr error
	select {
	case <-threadDone:
	case <-ctx.Done():
		threadErr = errs.Dispatch("shutdown_timeout", "thread pool did not drain within grace period", ctx.Err())
	}

	var processErr error
	if d.processPool != nil {
		processErr = d.processPool.shutdown(ctx)
	}
	if threadErr != nil {
		return threadErr
	}
	return processErr
}
