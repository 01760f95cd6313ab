// Package dataset provides the node sources used by the examples, the CLI
// and the test suite: a synthetic Gaussian mixture generator and a
// line-oriented text corpus reader.
package dataset

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hypergraphs/knng/graph"
)

// Overlap controls how much the Gaussian clusters of a synthetic dataset
// bleed into each other.
type Overlap int

const (
	// OverlapLow keeps clusters well separated.
	OverlapLow Overlap = iota
	// OverlapMedium lets neighboring clusters touch.
	OverlapMedium
	// OverlapHigh mixes clusters heavily.
	OverlapHigh
)

// sigma maps an overlap level to the standard deviation of each cluster,
// relative to the unit cube the centers are drawn from.
func (o Overlap) sigma() float64 {
	switch o {
	case OverlapLow:
		return 0.02
	case OverlapMedium:
		return 0.08
	default:
		return 0.20
	}
}

// Builder configures a synthetic Gaussian mixture dataset.
type Builder struct {
	centers int
	dim     int
	overlap Overlap
	size    int
	seed    uint64
}

// NewBuilder creates a dataset builder with the given number of cluster
// centers and dimensionality.
func NewBuilder(centers, dim int) *Builder {
	return &Builder{
		centers: centers,
		dim:     dim,
		overlap: OverlapMedium,
		size:    1000,
		seed:    1,
	}
}

// Overlap sets the cluster overlap level.
func (b *Builder) Overlap(o Overlap) *Builder {
	b.overlap = o
	return b
}

// Size sets the number of generated points.
func (b *Builder) Size(size int) *Builder {
	b.size = size
	return b
}

// Seed makes the dataset reproducible.
func (b *Builder) Seed(seed uint64) *Builder {
	b.seed = seed
	return b
}

// Build draws the points: cluster centers uniform in the unit cube, points
// normal around a uniformly chosen center. Node IDs are fresh UUIDs.
func (b *Builder) Build() ([]graph.Node[[]float64], error) {
	if b.centers < 1 {
		return nil, fmt.Errorf("dataset: centers must be >= 1, got %d", b.centers)
	}
	if b.dim < 1 {
		return nil, fmt.Errorf("dataset: dim must be >= 1, got %d", b.dim)
	}
	if b.size < 0 {
		return nil, fmt.Errorf("dataset: size must be >= 0, got %d", b.size)
	}

	src := rand.NewSource(b.seed)
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}

	centers := make([][]float64, b.centers)
	for i := range centers {
		c := make([]float64, b.dim)
		for d := range c {
			c[d] = uniform.Rand()
		}
		centers[i] = c
	}

	normal := distuv.Normal{Mu: 0, Sigma: b.overlap.sigma(), Src: src}
	pick := rand.New(src)

	nodes := make([]graph.Node[[]float64], b.size)
	for i := range nodes {
		center := centers[pick.Intn(b.centers)]
		point := make([]float64, b.dim)
		for d := range point {
			point[d] = center[d] + normal.Rand()
		}
		nodes[i] = graph.NewNode(graph.NodeID(uuid.NewString()), point)
	}
	return nodes, nil
}
