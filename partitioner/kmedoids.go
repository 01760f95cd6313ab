// Package partitioner assigns the nodes of a distributed k-NN graph to P
// partitions by balanced k-medoids: iterative medoid refinement with a soft
// per-shard capacity constraint, and medoid recomputation by graph
// eccentricity on the largest strongly connected component of each partition.
package partitioner

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/hypergraphs/knng/distgraph"
	"github.com/hypergraphs/knng/graph"
	"github.com/hypergraphs/knng/pcoll"
	"github.com/hypergraphs/knng/similarity"
)

// Configuration errors, reported at construction time.
var (
	ErrInvalidPartitions = errors.New("partitioner: partitions must be >= 1")
	ErrInvalidIterations = errors.New("partitioner: iterations must be >= 1")
	ErrInvalidImbalance  = errors.New("partitioner: imbalance must be >= 1.0")
	ErrNilSimilarity     = errors.New("partitioner: similarity must not be nil")
)

const (
	// DefaultIterations is the number of refinement passes.
	DefaultIterations = 5

	// DefaultImbalance is the soft per-shard capacity multiplier.
	DefaultImbalance = 1.05

	// initialSampleFactor scales the fraction used to draw initial medoid
	// candidates: fraction = initialSampleFactor * P / N.
	initialSampleFactor = 10.0
)

// Options tunes a BalancedKMedoids partitioner.
type Options struct {
	// Iterations is the number of refinement passes (default 5).
	Iterations int

	// Imbalance is the capacity multiplier alpha >= 1 (default 1.05). Within
	// one shard of size n, no partition receives more than
	// ceil(alpha * n / P) nodes during an assignment pass.
	Imbalance float64

	// Rand drives medoid sampling and assignment tie-breaks. Nil means a
	// non-deterministic source; pass a seeded source for reproducible
	// partitioning.
	Rand *rand.Rand
}

// NodePartition is the shuffle transport record: a node, the partition it
// was assigned to, and its neighbor list.
type NodePartition[T any] struct {
	Node      graph.Node[T]
	Partition int
	Neighbors *graph.NeighborList
}

// BalancedKMedoids partitions a distributed graph. It keeps the current
// medoids between calls so online maintenance can refresh them without a
// full repartition.
type BalancedKMedoids[T any] struct {
	partitions int
	iterations int
	imbalance  float64
	sim        similarity.Func[T]
	rng        *rand.Rand

	medoids []graph.Node[T]
}

// New creates a partitioner for the given number of partitions.
func New[T any](partitions int, sim similarity.Func[T], optFns ...func(o *Options)) (*BalancedKMedoids[T], error) {
	opts := Options{
		Iterations: DefaultIterations,
		Imbalance:  DefaultImbalance,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if partitions < 1 {
		return nil, ErrInvalidPartitions
	}
	if opts.Iterations < 1 {
		return nil, ErrInvalidIterations
	}
	if opts.Imbalance < 1.0 {
		return nil, ErrInvalidImbalance
	}
	if sim == nil {
		return nil, ErrNilSimilarity
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec
	}

	return &BalancedKMedoids[T]{
		partitions: partitions,
		iterations: opts.Iterations,
		imbalance:  opts.Imbalance,
		sim:        sim,
		rng:        rng,
	}, nil
}

// NumPartitions returns P.
func (p *BalancedKMedoids[T]) NumPartitions() int { return p.partitions }

// Medoids returns a copy of the current medoids.
func (p *BalancedKMedoids[T]) Medoids() []graph.Node[T] {
	out := make([]graph.Node[T], len(p.medoids))
	copy(out, p.medoids)
	return out
}

// Partition refines medoids for the configured number of iterations, then
// returns the edge table shuffled so shard p holds exactly the nodes
// assigned to partition p, with the partition attribute stamped on every
// node.
func (p *BalancedKMedoids[T]) Partition(ctx context.Context, edge *pcoll.Collection[distgraph.Tuple[T]]) (*pcoll.Collection[distgraph.Tuple[T]], error) {
	n, err := edge.Count(ctx)
	if err != nil {
		return nil, err
	}

	if n > 0 {
		if err := p.pickInitialMedoids(ctx, edge, n); err != nil {
			return nil, err
		}

		for it := 0; it < p.iterations; it++ {
			shuffled := p.shuffleByAssignment(edge)
			if err := p.recomputeMedoids(ctx, p.assignedSubgraphs(shuffled)); err != nil {
				return nil, err
			}
		}
	}

	// Final pass with the refined medoids: shuffle and stamp the partition
	// attribute on every node.
	final := pcoll.MapPartitions(p.shuffleByAssignment(edge), func(shard int, nps []NodePartition[T]) ([]distgraph.Tuple[T], error) {
		tuples := make([]distgraph.Tuple[T], len(nps))
		for i, np := range nps {
			node := np.Node
			node.Partition = np.Partition
			tuples[i] = distgraph.Tuple[T]{Node: node, Neighbors: np.Neighbors}
		}
		return tuples, nil
	})
	if err := final.Cache(ctx); err != nil {
		return nil, err
	}
	return final, nil
}

// pickInitialMedoids draws a small uniform sample and keeps the first P
// distinct nodes. Tiny graphs may not yield enough; then the remainder is
// drawn with replacement from the full collection.
func (p *BalancedKMedoids[T]) pickInitialMedoids(ctx context.Context, edge *pcoll.Collection[distgraph.Tuple[T]], n int) error {
	fraction := initialSampleFactor * float64(p.partitions) / float64(n)
	sample, err := edge.Sample(ctx, fraction, p.rng)
	if err != nil {
		return err
	}

	p.medoids = p.medoids[:0]
	seen := make(map[graph.NodeID]bool, p.partitions)
	for _, t := range sample {
		if seen[t.Node.ID] {
			continue
		}
		seen[t.Node.ID] = true
		p.medoids = append(p.medoids, t.Node)
		if len(p.medoids) == p.partitions {
			return nil
		}
	}

	all, err := edge.Collect(ctx)
	if err != nil {
		return err
	}
	for len(p.medoids) < p.partitions {
		p.medoids = append(p.medoids, all[p.rng.Intn(len(all))].Node)
	}
	return nil
}

// shuffleByAssignment runs the capacity-constrained assignment on every
// input shard and repartitions the result by assigned partition id. The
// modulo in the partitioning function is defensive: assignments are already
// in [0, P).
func (p *BalancedKMedoids[T]) shuffleByAssignment(edge *pcoll.Collection[distgraph.Tuple[T]]) *pcoll.Collection[NodePartition[T]] {
	medoids := p.Medoids()
	baseSeed := p.rng.Int63()

	assigned := pcoll.MapPartitions(edge, func(shard int, tuples []distgraph.Tuple[T]) ([]NodePartition[T], error) {
		// Each shard derives its own tie-break source so shards stay
		// independent and a seeded run stays reproducible.
		rng := rand.New(rand.NewSource(baseSeed + int64(shard))) //nolint:gosec
		return assignShard(tuples, medoids, p.sim, p.imbalance, p.partitions, rng), nil
	})

	return pcoll.PartitionBy(assigned, p.partitions, func(np NodePartition[T]) int {
		return np.Partition % p.partitions
	})
}

// assignShard streams one shard's tuples in arrival order. Each node scores
// every medoid as similarity * (1 - used/C) with C = ceil(alpha*n/P); the
// penalty term goes negative once a bucket is at capacity, which redirects
// the overflow to the least-bad alternative.
func assignShard[T any](tuples []distgraph.Tuple[T], medoids []graph.Node[T], sim similarity.Func[T], imbalance float64, partitions int, rng *rand.Rand) []NodePartition[T] {
	capacity := math.Ceil(imbalance * float64(len(tuples)) / float64(partitions))
	if capacity < 1 {
		capacity = 1
	}

	used := make([]int, partitions)
	values := make([]float64, partitions)
	out := make([]NodePartition[T], 0, len(tuples))

	for _, t := range tuples {
		for i, m := range medoids {
			values[i] = sim(m.Value, t.Node.Value) * (1.0 - float64(used[i])/capacity)
		}
		choice := argmax(values, rng)
		used[choice]++
		out = append(out, NodePartition[T]{Node: t.Node, Partition: choice, Neighbors: t.Neighbors})
	}
	return out
}

// argmax returns the index of the maximum value; ties are broken uniformly
// at random.
func argmax(values []float64, rng *rand.Rand) int {
	best := math.Inf(-1)
	var ties []int
	for i, v := range values {
		switch {
		case v > best:
			best = v
			ties = ties[:0]
			ties = append(ties, i)
		case v == best:
			ties = append(ties, i)
		}
	}
	if len(ties) == 1 {
		return ties[0]
	}
	return ties[rng.Intn(len(ties))]
}

// Assign places a single node during online insertion, using the live global
// partition counts instead of a per-shard capacity. The chosen partition is
// written to node.Partition.
func (p *BalancedKMedoids[T]) Assign(node *graph.Node[T], sizes []int64) {
	if len(p.medoids) == 0 {
		// Partitioned from an empty graph; everything lands in partition 0.
		node.Partition = 0
		return
	}

	var total int64
	for _, s := range sizes {
		total += s
	}

	capacity := p.imbalance * float64(total) / float64(p.partitions)
	values := make([]float64, p.partitions)
	for i, m := range p.medoids {
		s := p.sim(m.Value, node.Value)
		if capacity > 0 {
			s *= 1.0 - float64(sizes[i])/capacity
		}
		values[i] = s
	}
	node.Partition = argmax(values, p.rng)
}

// assignedSubgraphs materializes each shard of the shuffle as a local graph.
func (p *BalancedKMedoids[T]) assignedSubgraphs(shuffled *pcoll.Collection[NodePartition[T]]) *pcoll.Collection[*graph.Graph[T]] {
	return pcoll.MapPartitions(shuffled, func(_ int, nps []NodePartition[T]) ([]*graph.Graph[T], error) {
		g := graph.New(p.sim)
		for _, np := range nps {
			g.Put(np.Node, np.Neighbors)
		}
		return []*graph.Graph[T]{g}, nil
	})
}

// ComputeNewMedoids refreshes the medoid of every partition from the current
// subgraph view. A partition that collected no nodes keeps its previous
// medoid.
func (p *BalancedKMedoids[T]) ComputeNewMedoids(ctx context.Context, subgraphs *pcoll.Collection[*graph.Graph[T]]) error {
	return p.recomputeMedoids(ctx, subgraphs)
}

type medoidResult[T any] struct {
	shard  int
	medoid graph.Node[T]
	ok     bool
}

func (p *BalancedKMedoids[T]) recomputeMedoids(ctx context.Context, subgraphs *pcoll.Collection[*graph.Graph[T]]) error {
	results := pcoll.MapPartitions(subgraphs, func(shard int, gs []*graph.Graph[T]) ([]medoidResult[T], error) {
		out := make([]medoidResult[T], 0, len(gs))
		for _, g := range gs {
			m, ok := medoidOf(g)
			out = append(out, medoidResult[T]{shard: shard, medoid: m, ok: ok})
		}
		return out, nil
	})

	collected, err := results.Collect(ctx)
	if err != nil {
		return err
	}
	for _, res := range collected {
		if res.ok && res.shard < len(p.medoids) {
			p.medoids[res.shard] = res.medoid
		}
	}
	return nil
}

// medoidOf picks the graph-theoretic center of the partition: the node of
// the largest strongly connected component with the smallest positive
// eccentricity. Nodes with eccentricity 0 are isolated and skipped. An empty
// graph yields no medoid.
func medoidOf[T any](g *graph.Graph[T]) (graph.Node[T], bool) {
	var zero graph.Node[T]
	if g.Len() == 0 {
		return zero, false
	}

	components := g.StronglyConnectedComponents()
	largest := components[0]
	for _, c := range components[1:] {
		switch {
		case c.Len() > largest.Len():
			largest = c
		case c.Len() == largest.Len() && minID(c) < minID(largest):
			largest = c
		}
	}

	ids := largest.IDs()
	medoidID := ids[0]
	bestEcc := math.MaxInt
	for _, id := range ids {
		ecc := graph.NewDijkstra(largest, id).LargestDistance()
		if ecc == 0 {
			continue
		}
		if ecc < bestEcc {
			bestEcc = ecc
			medoidID = id
		}
	}

	medoid, _ := largest.Node(medoidID)
	return medoid, true
}

func minID[T any](g *graph.Graph[T]) graph.NodeID {
	var best graph.NodeID
	first := true
	for _, id := range g.IDs() {
		if first || bytes.Compare([]byte(id), []byte(best)) < 0 {
			best = id
			first = false
		}
	}
	return best
}
