// Package search fuses per-partition greedy graph walks into a single
// approximate k-NN query: map a bounded GNSS walk over every shard, collect
// the per-shard candidates, and merge them into one top-k list.
package search

import (
	"context"
	"errors"
	"math/rand"

	"github.com/hypergraphs/knng/distgraph"
	"github.com/hypergraphs/knng/graph"
	"github.com/hypergraphs/knng/partitioner"
	"github.com/hypergraphs/knng/pcoll"
	"github.com/hypergraphs/knng/similarity"
)

// ErrInvalidK is returned when a query asks for a non-positive k.
var ErrInvalidK = errors.New("search: k must be positive")

const (
	// DefaultDepth bounds each greedy walk.
	DefaultDepth = 100

	// DefaultExpansion controls the per-shard starting set.
	DefaultExpansion = 1.01
)

// Options tunes one search call.
type Options struct {
	// Depth is the maximum number of hops per walk (default 100).
	Depth int

	// Expansion is the starting-set expansion factor (default 1.01).
	Expansion float64

	// Rand picks starting nodes. Nil means non-deterministic.
	Rand *rand.Rand
}

// ApproximateSearch holds a partitioned graph and answers k-NN queries with
// bounded work. Construction runs the balanced k-medoids partitioner over
// the input edge table and caches the result.
type ApproximateSearch[T any] struct {
	sim        similarity.Func[T]
	part       *partitioner.BalancedKMedoids[T]
	partitions int
	subgraphs  *pcoll.Collection[*graph.Graph[T]]
}

// New partitions the edge table and prepares the per-shard subgraphs.
func New[T any](ctx context.Context, edge *pcoll.Collection[distgraph.Tuple[T]], iterations, partitions int, sim similarity.Func[T], optFns ...func(o *partitioner.Options)) (*ApproximateSearch[T], error) {
	fns := append([]func(o *partitioner.Options){func(o *partitioner.Options) {
		o.Iterations = iterations
	}}, optFns...)

	part, err := partitioner.New(partitions, sim, fns...)
	if err != nil {
		return nil, err
	}

	partitioned, err := part.Partition(ctx, edge)
	if err != nil {
		return nil, err
	}

	subgraphs := distgraph.ToSubgraphs(partitioned, sim)
	if err := subgraphs.Cache(ctx); err != nil {
		return nil, err
	}

	return &ApproximateSearch[T]{
		sim:        sim,
		part:       part,
		partitions: partitions,
		subgraphs:  subgraphs,
	}, nil
}

// Partitioner exposes the underlying partitioner for online maintenance
// (single-node assignment, medoid refresh).
func (s *ApproximateSearch[T]) Partitioner() *partitioner.BalancedKMedoids[T] { return s.part }

// Subgraphs returns the current subgraph view.
func (s *ApproximateSearch[T]) Subgraphs() *pcoll.Collection[*graph.Graph[T]] { return s.subgraphs }

// SetSubgraphs swaps in a new graph version. The online graph calls this
// after every mutation (functional update).
func (s *ApproximateSearch[T]) SetSubgraphs(subgraphs *pcoll.Collection[*graph.Graph[T]]) {
	s.subgraphs = subgraphs
}

// Search returns up to k candidates for query. maxSimilarities is the global
// similarity budget; every shard gets maxSimilarities/P, so the result is
// bounded by the union of per-shard findings, with no accuracy guarantee.
func (s *ApproximateSearch[T]) Search(ctx context.Context, query T, k, maxSimilarities int, optFns ...func(o *Options)) (*graph.NeighborList, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	opts := Options{
		Depth:     DefaultDepth,
		Expansion: DefaultExpansion,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	budget := maxSimilarities / s.partitions

	var baseSeed int64
	if opts.Rand != nil {
		baseSeed = opts.Rand.Int63()
	}

	candidates := pcoll.MapPartitions(s.subgraphs, func(shard int, gs []*graph.Graph[T]) ([]*graph.NeighborList, error) {
		out := make([]*graph.NeighborList, 0, len(gs))
		for _, g := range gs {
			var rng *rand.Rand
			if opts.Rand != nil {
				rng = rand.New(rand.NewSource(baseSeed + int64(shard))) //nolint:gosec
			}
			out = append(out, g.Search(query, k, func(o *graph.SearchOptions) {
				o.MaxSimilarities = budget
				o.Depth = opts.Depth
				o.Expansion = opts.Expansion
				o.Rand = rng
			}))
		}
		return out, nil
	})

	lists, err := candidates.Collect(ctx)
	if err != nil {
		return nil, err
	}

	merged := graph.NewNeighborList(k)
	for _, nl := range lists {
		merged.AddAll(nl)
	}
	return merged, nil
}

// Assign places a node into a partition using the current medoids and live
// partition sizes, writing the choice to node.Partition.
func (s *ApproximateSearch[T]) Assign(node *graph.Node[T], sizes []int64) {
	s.part.Assign(node, sizes)
}
