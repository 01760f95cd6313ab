package graph

// Dijkstra holds single-source shortest-path hop counts over a graph. All
// edges have unit weight, so the computation is a breadth-first sweep.
type Dijkstra struct {
	dist    map[NodeID]int
	largest int
}

// NewDijkstra computes hop distances from source to every node reachable
// inside g. Neighbor IDs pointing outside the graph are ignored. When the
// source is not part of the graph, every distance is unreachable.
func NewDijkstra[T any](g *Graph[T], source NodeID) *Dijkstra {
	d := &Dijkstra{dist: make(map[NodeID]int, len(g.entries))}

	src, ok := g.entries[source]
	if !ok {
		return d
	}
	d.dist[source] = 0

	frontier := []*entry[T]{src}
	for depth := 1; len(frontier) > 0; depth++ {
		var next []*entry[T]
		for _, e := range frontier {
			for nb := range e.nl.All() {
				t, ok := g.entries[nb.ID]
				if !ok {
					continue
				}
				if _, seen := d.dist[nb.ID]; seen {
					continue
				}
				d.dist[nb.ID] = depth
				if depth > d.largest {
					d.largest = depth
				}
				next = append(next, t)
			}
		}
		frontier = next
	}
	return d
}

// Distance returns the hop count from the source to id, and whether id is
// reachable at all.
func (d *Dijkstra) Distance(id NodeID) (int, bool) {
	dist, ok := d.dist[id]
	return dist, ok
}

// LargestDistance returns the eccentricity of the source: the maximum hop
// count to any reachable node. A node with no reachable neighbors has
// eccentricity 0.
func (d *Dijkstra) LargestDistance() int { return d.largest }
