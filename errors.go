package knng

import (
	"errors"
	"fmt"

	"github.com/hypergraphs/knng/partitioner"
)

// Configuration errors, reported when an Online graph is created or
// reconfigured. Substrate and storage errors are propagated unchanged.
var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidPartitions is returned when the partition count is not
	// positive.
	ErrInvalidPartitions = errors.New("partitions must be >= 1")

	// ErrInvalidImbalance is returned when the capacity multiplier is below
	// 1.0.
	ErrInvalidImbalance = errors.New("imbalance must be >= 1.0")

	// ErrInvalidUpdateRatio is returned when the medoid update ratio is
	// negative.
	ErrInvalidUpdateRatio = errors.New("medoid update ratio must be >= 0")

	// ErrInvalidSearchSpeedup is returned when the search speedup is not
	// positive.
	ErrInvalidSearchSpeedup = errors.New("search speedup must be positive")

	// ErrNilSimilarity is returned when no similarity function is supplied.
	ErrNilSimilarity = errors.New("similarity must not be nil")

	// ErrNotFound is returned when an operation targets a node that is not
	// part of the graph.
	ErrNotFound = errors.New("not found")
)

// translateError unifies the sub-package configuration sentinels under the
// package-level ones so callers only match against knng errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, partitioner.ErrInvalidPartitions):
		return fmt.Errorf("%w: %w", ErrInvalidPartitions, err)
	case errors.Is(err, partitioner.ErrInvalidImbalance):
		return fmt.Errorf("%w: %w", ErrInvalidImbalance, err)
	case errors.Is(err, partitioner.ErrNilSimilarity):
		return fmt.Errorf("%w: %w", ErrNilSimilarity, err)
	}
	return err
}
