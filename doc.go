// Package knng builds, partitions, searches and incrementally maintains
// approximate k-nearest-neighbor graphs over large collections of
// value-bearing nodes, under a caller-supplied similarity function.
//
// The graph lives on a partitioned-collection substrate (package pcoll) as
// one subgraph per partition. Partitions are computed by a balanced
// k-medoids partitioner (package partitioner) that trades similarity for
// capacity, queries run as bounded greedy walks fused across partitions
// (package search), and the Online graph in this package keeps everything
// current under insertions and removals with bounded local work.
//
// # Quick start
//
// Build an exact graph and keep it online:
//
//	nodes := pcoll.FromSlice(pctx, items, 4)
//
//	brute, _ := builder.NewBrute(10, similarity.L2)
//	edge, err := brute.ComputeGraph(ctx, nodes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	online, err := knng.NewOnline(ctx, 10, similarity.L2, edge, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = online.AddNode(ctx, graph.NewNode("id-9001", vector))
//
//	result, err := online.Search(ctx, query, 10, 4000)
//
// Results are approximate: every query and every update runs under an
// explicit similarity-computation budget, so cost stays bounded while recall
// degrades gracefully.
package knng
