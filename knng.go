package knng

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/hypergraphs/knng/distgraph"
	"github.com/hypergraphs/knng/graph"
	"github.com/hypergraphs/knng/partitioner"
	"github.com/hypergraphs/knng/pcoll"
	"github.com/hypergraphs/knng/search"
	"github.com/hypergraphs/knng/similarity"
)

const (
	// PartitioningIterations is the number of k-medoids passes run when the
	// initial graph is partitioned.
	PartitioningIterations = 5

	// DefaultImbalance is the capacity multiplier used for partitioning and
	// online assignment.
	DefaultImbalance = 1.05

	// DefaultSearchSpeedup multiplies k to form the similarity budget of the
	// per-insertion neighbor search.
	DefaultSearchSpeedup = 4

	// DefaultMedoidUpdateRatio is the fraction of the graph size inserted
	// between online medoid refreshes.
	DefaultMedoidUpdateRatio = 0.1

	// IterationsBetweenCheckpoints is the number of insertions between
	// lineage checkpoints.
	IterationsBetweenCheckpoints = 100

	// updateDepth bounds the back-edge update around a new node.
	updateDepth = 2

	// removeExpansionDepth bounds the candidate expansion of a removal.
	removeExpansionDepth = 3

	// previousVersionsRetained is how many of the most recent graph versions
	// (the current one included) stay materialized; older ones are released.
	previousVersionsRetained = 2
)

// Online is a distributed k-NN graph that stays current under insertions and
// removals. It owns an ApproximateSearch and, through it, the partitioned
// collection holding the graph; every mutation swaps in a new version
// (functional update) while the two most recent versions, the current one
// and the one it replaced, are retained for the substrate before release.
//
// Online is not safe for concurrent mutation: AddNode and FastRemove are
// strictly sequential driver operations.
type Online[T any] struct {
	k             int
	sim           similarity.Func[T]
	searcher      *search.ApproximateSearch[T]
	searchSpeedup int

	medoidUpdateRatio        float64
	nodesBeforeUpdateMedoids int64

	partitionsSize []int64
	previous       []*pcoll.Collection[*graph.Graph[T]]
	nodesAdded     int64

	rng     *rand.Rand
	logger  *Logger
	metrics MetricsCollector
}

// NewOnline partitions the initial edge table across the given number of
// partitions and prepares it for online maintenance.
func NewOnline[T any](ctx context.Context, k int, sim similarity.Func[T], initial *pcoll.Collection[distgraph.Tuple[T]], partitions int, optFns ...Option) (*Online[T], error) {
	opts := applyOptions(optFns)

	if k <= 0 {
		return nil, ErrInvalidK
	}
	if sim == nil {
		return nil, ErrNilSimilarity
	}
	if partitions < 1 {
		return nil, ErrInvalidPartitions
	}
	if opts.searchSpeedup <= 0 {
		return nil, ErrInvalidSearchSpeedup
	}
	if opts.medoidUpdateRatio < 0 {
		return nil, ErrInvalidUpdateRatio
	}

	searcher, err := search.New(ctx, initial, opts.iterations, partitions, sim, func(o *partitioner.Options) {
		o.Imbalance = opts.imbalance
		o.Rand = opts.rng
	})
	if err != nil {
		return nil, translateError(err)
	}

	sizes, err := distgraph.PartitionSizes(ctx, searcher.Subgraphs())
	if err != nil {
		return nil, err
	}

	o := &Online[T]{
		k:                 k,
		sim:               sim,
		searcher:          searcher,
		searchSpeedup:     opts.searchSpeedup,
		medoidUpdateRatio: opts.medoidUpdateRatio,
		partitionsSize:    sizes,
		rng:               opts.rng,
		logger:            opts.logger,
		metrics:           opts.metricsCollector,
	}
	o.nodesBeforeUpdateMedoids = o.computeNodesBeforeUpdate()
	return o, nil
}

// Size returns the total number of nodes in the graph.
func (o *Online[T]) Size() int64 {
	var total int64
	for _, s := range o.partitionsSize {
		total += s
	}
	return total
}

// PartitionsSize returns a copy of the per-partition node counts.
func (o *Online[T]) PartitionsSize() []int64 {
	out := make([]int64, len(o.partitionsSize))
	copy(out, o.partitionsSize)
	return out
}

// SetSearchSpeedup changes the insertion search speedup (default 4).
func (o *Online[T]) SetSearchSpeedup(speedup int) error {
	if speedup <= 0 {
		return ErrInvalidSearchSpeedup
	}
	o.searchSpeedup = speedup
	return nil
}

// SetMedoidUpdateRatio changes the medoid refresh cadence (default 0.1).
// 0 disables online medoid updates.
func (o *Online[T]) SetMedoidUpdateRatio(ratio float64) error {
	if ratio < 0 {
		return ErrInvalidUpdateRatio
	}
	o.medoidUpdateRatio = ratio
	o.nodesBeforeUpdateMedoids = o.computeNodesBeforeUpdate()
	return nil
}

func (o *Online[T]) computeNodesBeforeUpdate() int64 {
	if o.medoidUpdateRatio == 0 {
		return math.MaxInt64
	}
	n := int64(float64(o.Size()) * o.medoidUpdateRatio)
	if n < 1 {
		n = 1
	}
	return n
}

// Search queries the current graph for the k nodes most similar to query,
// spending at most maxSimilarities similarity computations across all
// partitions.
func (o *Online[T]) Search(ctx context.Context, query T, k, maxSimilarities int) (*graph.NeighborList, error) {
	start := time.Now()
	nl, err := o.searcher.Search(ctx, query, k, maxSimilarities, func(so *search.Options) {
		so.Rand = o.rng
	})
	o.metrics.RecordSearch(k, time.Since(start), err)
	if err != nil {
		o.logger.LogSearch(ctx, k, 0, err)
		return nil, err
	}
	o.logger.LogSearch(ctx, k, nl.Len(), nil)
	return nl, nil
}

// AddNode inserts a node: its neighbors are found with a bounded search, the
// node is assigned to a partition under the capacity constraint, and the
// two-hop neighborhood of its new neighbor list gains back-edges where the
// similarity qualifies.
func (o *Online[T]) AddNode(ctx context.Context, node graph.Node[T]) error {
	start := time.Now()
	err := o.addNode(ctx, &node)
	o.metrics.RecordAddNode(time.Since(start), err)
	o.logger.LogAddNode(ctx, string(node.ID), node.Partition, o.k, err)
	return err
}

func (o *Online[T]) addNode(ctx context.Context, node *graph.Node[T]) error {
	// Find the neighbors of the new node.
	nl, err := o.searcher.Search(ctx, node.Value, o.k, o.searchSpeedup*o.k, func(so *search.Options) {
		so.Rand = o.rng
	})
	if err != nil {
		return err
	}

	// Assign it to a partition: most similar medoid under the global size
	// constraint.
	o.searcher.Assign(node, o.partitionsSize)
	o.partitionsSize[node.Partition]++

	// Create the back-edges from the two-hop neighborhood, then append the
	// new entry to its partition's subgraph.
	inserted := *node
	updated := pcoll.MapPartitions(o.searcher.Subgraphs(), func(shard int, gs []*graph.Graph[T]) ([]*graph.Graph[T], error) {
		for _, g := range gs {
			updateNeighborhood(g, inserted, nl, o.sim)
			if subgraphPartition(g, shard) == inserted.Partition {
				g.Put(inserted, nl)
			}
		}
		return gs, nil
	})
	if err := updated.Cache(ctx); err != nil {
		return err
	}

	// From now on, use the new version.
	o.searcher.SetSubgraphs(updated)
	o.nodesAdded++

	// Truncate the transformation lineage periodically; an unbounded chain
	// of deferred stages would grow without limit.
	if o.nodesAdded%IterationsBetweenCheckpoints == 0 {
		cpStart := time.Now()
		if err := updated.Checkpoint(ctx); err != nil {
			return err
		}
		o.metrics.RecordCheckpoint(time.Since(cpStart))
		o.logger.LogCheckpoint(ctx, o.nodesAdded, time.Since(cpStart))
	}

	// Keep the previous versions around until two newer ones exist.
	o.previous = append(o.previous, updated)
	if len(o.previous) > previousVersionsRetained {
		oldest := o.previous[0]
		o.previous = o.previous[1:]
		oldest.Unpersist()
	}

	o.nodesBeforeUpdateMedoids--
	if o.nodesBeforeUpdateMedoids == 0 {
		muStart := time.Now()
		if err := o.searcher.Partitioner().ComputeNewMedoids(ctx, updated); err != nil {
			return err
		}
		o.metrics.RecordMedoidUpdate(time.Since(muStart))
		o.logger.LogMedoidUpdate(ctx, o.Size(), time.Since(muStart))
		o.nodesBeforeUpdateMedoids = o.computeNodesBeforeUpdate()
	}

	return nil
}

// updateNeighborhood walks the new node's neighborhood to updateDepth and
// offers a back-edge to every visited node. Neighbor IDs that resolve
// outside the subgraph belong to another partition and are skipped.
func updateNeighborhood[T any](g *graph.Graph[T], node graph.Node[T], nl *graph.NeighborList, sim similarity.Func[T]) {
	analyze := make([]graph.NodeID, 0, nl.Len())
	for nb := range nl.All() {
		analyze = append(analyze, nb.ID)
	}

	visited := make(map[graph.NodeID]bool)
	var next []graph.NodeID

	for depth := 0; depth < updateDepth; depth++ {
		for _, otherID := range analyze {
			if visited[otherID] {
				continue
			}
			otherNL := g.Get(otherID)
			if otherNL == nil {
				continue
			}

			for nb := range otherNL.All() {
				if !visited[nb.ID] {
					next = append(next, nb.ID)
				}
			}

			other, _ := g.Node(otherID)
			otherNL.Add(graph.Neighbor{
				ID:         node.ID,
				Similarity: sim(node.Value, other.Value),
			})
			visited[otherID] = true
		}
		analyze = next
		next = nil
	}
}

// subgraphPartition reports which partition a subgraph holds: the partition
// attribute of any of its nodes, falling back to the shard index when the
// subgraph is still empty.
func subgraphPartition[T any](g *graph.Graph[T], shard int) int {
	for node := range g.Nodes() {
		if node.Partition != graph.PartitionUnset {
			return node.Partition
		}
		break
	}
	return shard
}

// FastRemove removes a node with the approximate algorithm: collect the
// nodes whose lists reference it, expand candidates around them to a bounded
// depth, then drop the node and refill the affected lists from the
// candidates.
func (o *Online[T]) FastRemove(ctx context.Context, id graph.NodeID) error {
	start := time.Now()
	affected, err := o.fastRemove(ctx, id)
	o.metrics.RecordRemove(time.Since(start), err)
	o.logger.LogRemove(ctx, string(id), affected, err)
	return err
}

func (o *Online[T]) fastRemove(ctx context.Context, id graph.NodeID) (int, error) {
	subgraphs := o.searcher.Subgraphs()

	// Which nodes have the target as a neighbor?
	toUpdate, err := pcoll.FlatMap(subgraphs, func(g *graph.Graph[T]) []graph.NodeID {
		var out []graph.NodeID
		for node, nl := range g.Entries() {
			if nl.Contains(id) {
				out = append(out, node.ID)
			}
		}
		return out
	}).Collect(ctx)
	if err != nil {
		return 0, err
	}

	// Candidate replacements: the neighborhood around the target and the
	// affected nodes, minus the target itself.
	initial := append([]graph.NodeID{id}, toUpdate...)
	candidateIDs, err := pcoll.FlatMap(subgraphs, func(g *graph.Graph[T]) []graph.NodeID {
		return g.FindNeighbors(initial, removeExpansionDepth)
	}).Collect(ctx)
	if err != nil {
		return 0, err
	}

	// Resolve payloads across partition boundaries through the registry.
	registry, err := distgraph.BuildRegistry(ctx, distgraph.ToEdgeTable(subgraphs))
	if err != nil {
		return 0, err
	}
	target, ok := registry.Resolve(id)
	if !ok {
		return 0, ErrNotFound
	}

	candidates := make([]graph.Node[T], 0, len(candidateIDs))
	for _, cid := range candidateIDs {
		if cid == id {
			continue
		}
		if n, ok := registry.Resolve(cid); ok {
			candidates = append(candidates, n)
		}
	}

	updated := pcoll.MapPartitions(subgraphs, func(_ int, gs []*graph.Graph[T]) ([]*graph.Graph[T], error) {
		for _, g := range gs {
			removeAndRefill(g, id, toUpdate, candidates, o.sim)
		}
		return gs, nil
	})
	if err := updated.Cache(ctx); err != nil {
		return 0, err
	}

	o.searcher.SetSubgraphs(updated)
	if target.Partition >= 0 && target.Partition < len(o.partitionsSize) {
		o.partitionsSize[target.Partition]--
	}
	return len(toUpdate), nil
}

// removeAndRefill drops the target from one subgraph and repairs the lists
// that referenced it: the target edge is removed and every candidate is
// offered, letting the list's own eviction rule keep the k best.
func removeAndRefill[T any](g *graph.Graph[T], id graph.NodeID, toUpdate []graph.NodeID, candidates []graph.Node[T], sim similarity.Func[T]) {
	g.Remove(id)

	for _, uid := range toUpdate {
		nl := g.Get(uid)
		if nl == nil {
			continue // belongs to another subgraph
		}
		nl.Remove(id)

		u, _ := g.Node(uid)
		for _, cand := range candidates {
			nl.Add(graph.Neighbor{
				ID:         cand.ID,
				Similarity: sim(u.Value, cand.Value),
			})
		}
	}
}

// Graph returns the current graph as its edge-table view.
func (o *Online[T]) Graph() *pcoll.Collection[distgraph.Tuple[T]] {
	return distgraph.ToEdgeTable(o.searcher.Subgraphs())
}

// DistributedGraph returns the current graph as its subgraph-per-partition
// view.
func (o *Online[T]) DistributedGraph() *pcoll.Collection[*graph.Graph[T]] {
	return o.searcher.Subgraphs()
}
