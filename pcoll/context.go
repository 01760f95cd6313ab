// Package pcoll implements the partitioned-collection substrate the
// distributed graph runs on: lazily computed, partition-sharded collections
// with bulk-synchronous parallel stages, caching, and checkpointing.
//
// The driver defines stages (map-partitions, flat-map, partition-by) as pure
// per-partition functions; a stage runs its partitions in parallel with no
// cross-partition communication, and collect / partition-by / checkpoint act
// as global barriers. Go methods cannot introduce type parameters, so the
// element-type-changing transforms are package-level functions.
package pcoll

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hypergraphs/knng/blobstore"
	"github.com/hypergraphs/knng/persistence"
)

// ContextOptions configures a substrate context.
type ContextOptions struct {
	// Parallelism bounds the number of partitions processed concurrently per
	// stage. Defaults to GOMAXPROCS.
	Parallelism int

	// CheckpointStore, when set, makes Checkpoint also write a durable copy
	// of the collection. Without it, checkpointing only truncates lineage in
	// memory.
	CheckpointStore blobstore.Store

	// CheckpointPrefix prefixes durable checkpoint blob names.
	CheckpointPrefix string

	// Compression selects the codec for durable checkpoints.
	Compression persistence.Compression

	// IOLimitBytesPerSec throttles durable checkpoint writes. 0 means
	// unlimited.
	IOLimitBytesPerSec int

	// OnCheckpoint, when set, is invoked after every successful checkpoint
	// with the checkpoint sequence number. Used by tests and metrics.
	OnCheckpoint func(seq int64)
}

// Context owns the execution resources shared by all collections derived
// from it.
type Context struct {
	opts    ContextOptions
	limiter *rate.Limiter
	seq     atomic.Int64
}

// NewContext creates a substrate context.
func NewContext(optFns ...func(o *ContextOptions)) *Context {
	opts := ContextOptions{
		Parallelism: runtime.GOMAXPROCS(0),
		Compression: persistence.CompressionS2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}

	c := &Context{opts: opts}
	if opts.IOLimitBytesPerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.IOLimitBytesPerSec), opts.IOLimitBytesPerSec)
	}
	return c
}

// run executes task for every partition index, bounded by the configured
// parallelism. The first error cancels the remaining partitions.
func (c *Context) run(ctx context.Context, numParts int, task func(p int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)
	for p := 0; p < numParts; p++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(p)
		})
	}
	return g.Wait()
}

// checkpointName returns the blob name for the next durable checkpoint.
func (c *Context) checkpointName(seq int64) string {
	return fmt.Sprintf("%scheckpoint-%06d", c.opts.CheckpointPrefix, seq)
}

// limitWriter applies the context IO limit to checkpoint writes.
func (c *Context) limitWriter(ctx context.Context, w io.Writer) io.Writer {
	if c.limiter == nil {
		return w
	}
	return &limitedWriter{ctx: ctx, w: w, limiter: c.limiter}
}

type limitedWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if burst := lw.limiter.Burst(); len(chunk) > burst {
			chunk = chunk[:burst]
		}
		if err := lw.limiter.WaitN(lw.ctx, len(chunk)); err != nil {
			return written, err
		}
		n, err := lw.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
