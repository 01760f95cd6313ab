package pcoll

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/hypergraphs/knng/persistence"
)

// Collection is a partition-sharded collection of values. It is either
// materialized (backed by per-partition slices) or lazy (backed by a compute
// closure over its parent collections, the lineage). Materialization is
// memoized; Unpersist drops the memo and lets the lineage recompute it.
type Collection[V any] struct {
	pctx     *Context
	numParts int

	mu      sync.Mutex
	parts   [][]V
	valid   bool
	compute func(ctx context.Context) ([][]V, error)
}

// FromSlices creates a materialized collection from explicit partitions.
func FromSlices[V any](pctx *Context, parts [][]V) *Collection[V] {
	return &Collection[V]{
		pctx:     pctx,
		numParts: len(parts),
		parts:    parts,
		valid:    true,
	}
}

// FromSlice creates a materialized collection by slicing data into numParts
// contiguous, near-equal partitions.
func FromSlice[V any](pctx *Context, data []V, numParts int) *Collection[V] {
	if numParts < 1 {
		numParts = 1
	}
	parts := make([][]V, numParts)
	base := len(data) / numParts
	rem := len(data) % numParts
	offset := 0
	for p := range numParts {
		n := base
		if p < rem {
			n++
		}
		parts[p] = data[offset : offset+n]
		offset += n
	}
	return FromSlices(pctx, parts)
}

// Context returns the substrate context the collection belongs to.
func (c *Collection[V]) Context() *Context { return c.pctx }

// NumPartitions returns the number of partitions.
func (c *Collection[V]) NumPartitions() int { return c.numParts }

// materialize computes (or returns the memoized) partitions.
func (c *Collection[V]) materialize(ctx context.Context) ([][]V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid {
		return c.parts, nil
	}
	parts, err := c.compute(ctx)
	if err != nil {
		return nil, err
	}
	c.parts = parts
	c.valid = true
	return parts, nil
}

// Cache forces materialization so later uses hit the memo instead of the
// lineage.
func (c *Collection[V]) Cache(ctx context.Context) error {
	_, err := c.materialize(ctx)
	return err
}

// Unpersist drops the memoized partitions. A later use recomputes them
// through the lineage. Collections without lineage (sources and checkpoints)
// keep their data.
func (c *Collection[V]) Unpersist() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compute == nil {
		return
	}
	c.parts = nil
	c.valid = false
}

// Checkpoint materializes the collection and truncates its lineage, so the
// chain of deferred transforms behind it can be released. When the context
// has a checkpoint store, a durable copy is also written through the
// snapshot codec.
func (c *Collection[V]) Checkpoint(ctx context.Context) error {
	if _, err := c.materialize(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.compute = nil
	parts := c.parts
	c.mu.Unlock()

	seq := c.pctx.seq.Add(1)
	if store := c.pctx.opts.CheckpointStore; store != nil {
		pr, pw := io.Pipe()
		go func() {
			err := persistence.Write(c.pctx.limitWriter(ctx, pw), c.pctx.opts.Compression, func(w io.Writer) error {
				return gob.NewEncoder(w).Encode(parts)
			})
			pw.CloseWithError(err)
		}()
		if err := store.Put(ctx, c.pctx.checkpointName(seq), pr); err != nil {
			return fmt.Errorf("pcoll: write checkpoint: %w", err)
		}
	}

	if c.pctx.opts.OnCheckpoint != nil {
		c.pctx.opts.OnCheckpoint(seq)
	}
	return nil
}

// LoadCheckpoint reads a durable checkpoint previously written by Checkpoint.
func LoadCheckpoint[V any](ctx context.Context, pctx *Context, name string) (*Collection[V], error) {
	store := pctx.opts.CheckpointStore
	if store == nil {
		return nil, fmt.Errorf("pcoll: no checkpoint store configured")
	}
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var parts [][]V
	if err := persistence.Read(r, func(pr io.Reader) error {
		return gob.NewDecoder(pr).Decode(&parts)
	}); err != nil {
		return nil, err
	}
	return FromSlices(pctx, parts), nil
}

// Collect gathers every element to the driver, in partition order.
func (c *Collection[V]) Collect(ctx context.Context) ([]V, error) {
	parts, err := c.materialize(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]V, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// Count returns the total number of elements.
func (c *Collection[V]) Count(ctx context.Context) (int, error) {
	parts, err := c.materialize(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	return total, nil
}

// Sample returns an approximately fraction-sized Bernoulli sample, scanned
// in partition order so a seeded source yields a reproducible sample.
func (c *Collection[V]) Sample(ctx context.Context, fraction float64, rng *rand.Rand) ([]V, error) {
	parts, err := c.materialize(ctx)
	if err != nil {
		return nil, err
	}
	var out []V
	for _, part := range parts {
		for _, v := range part {
			if randFloat(rng) < fraction {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func randFloat(rng *rand.Rand) float64 {
	if rng != nil {
		return rng.Float64()
	}
	return rand.Float64()
}

// MapPartitions derives a collection by applying f to each partition
// independently. Partitioning is preserved: output partition p is
// f(p, input partition p). Partitions run in parallel, bounded by the
// context parallelism.
func MapPartitions[V, W any](c *Collection[V], f func(p int, in []V) ([]W, error)) *Collection[W] {
	return &Collection[W]{
		pctx:     c.pctx,
		numParts: c.numParts,
		compute: func(ctx context.Context) ([][]W, error) {
			in, err := c.materialize(ctx)
			if err != nil {
				return nil, err
			}
			out := make([][]W, len(in))
			err = c.pctx.run(ctx, len(in), func(p int) error {
				res, err := f(p, in[p])
				if err != nil {
					return err
				}
				out[p] = res
				return nil
			})
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// Map derives a collection by applying f to every element.
func Map[V, W any](c *Collection[V], f func(V) W) *Collection[W] {
	return MapPartitions(c, func(_ int, in []V) ([]W, error) {
		out := make([]W, len(in))
		for i, v := range in {
			out[i] = f(v)
		}
		return out, nil
	})
}

// FlatMap derives a collection by applying f to every element and
// concatenating the results within each partition.
func FlatMap[V, W any](c *Collection[V], f func(V) []W) *Collection[W] {
	return MapPartitions(c, func(_ int, in []V) ([]W, error) {
		var out []W
		for _, v := range in {
			out = append(out, f(v)...)
		}
		return out, nil
	})
}

// PartitionBy shuffles the collection into numParts partitions according to
// fn. Within an output partition, elements keep the order of their source
// partitions.
func PartitionBy[V any](c *Collection[V], numParts int, fn func(V) int) *Collection[V] {
	if numParts < 1 {
		numParts = 1
	}
	return &Collection[V]{
		pctx:     c.pctx,
		numParts: numParts,
		compute: func(ctx context.Context) ([][]V, error) {
			in, err := c.materialize(ctx)
			if err != nil {
				return nil, err
			}

			// Bucket each source partition in parallel, then merge in source
			// order so the shuffle is deterministic.
			buckets := make([][][]V, len(in))
			err = c.pctx.run(ctx, len(in), func(p int) error {
				local := make([][]V, numParts)
				for _, v := range in[p] {
					t := fn(v) % numParts
					if t < 0 {
						t += numParts
					}
					local[t] = append(local[t], v)
				}
				buckets[p] = local
				return nil
			})
			if err != nil {
				return nil, err
			}

			out := make([][]V, numParts)
			for _, local := range buckets {
				for t, vs := range local {
					out[t] = append(out[t], vs...)
				}
			}
			return out, nil
		},
	}
}
