package knng

import (
	"log/slog"
	"math/rand"
)

type options struct {
	iterations        int
	imbalance         float64
	searchSpeedup     int
	medoidUpdateRatio float64
	rng               *rand.Rand
	logger            *Logger
	metricsCollector  MetricsCollector
}

// Option configures an Online graph at construction time.
type Option func(*options)

// WithIterations sets the number of k-medoids refinement passes run when the
// initial graph is partitioned (default 5).
func WithIterations(iterations int) Option {
	return func(o *options) {
		o.iterations = iterations
	}
}

// WithImbalance sets the capacity multiplier alpha used by the partitioner
// and by online assignment (default 1.05). Must be >= 1.
func WithImbalance(imbalance float64) Option {
	return func(o *options) {
		o.imbalance = imbalance
	}
}

// WithSearchSpeedup sets the speedup of the neighbor search performed for
// every insertion (default 4): the search budget is speedup * k similarity
// computations.
func WithSearchSpeedup(speedup int) Option {
	return func(o *options) {
		o.searchSpeedup = speedup
	}
}

// WithMedoidUpdateRatio sets the fraction of the graph size that may be
// inserted before medoids are recomputed (default 0.1). 0 disables medoid
// updates.
func WithMedoidUpdateRatio(ratio float64) Option {
	return func(o *options) {
		o.medoidUpdateRatio = ratio
	}
}

// WithRand supplies the random source used for partitioning tie-breaks and
// search starting points. Pass a seeded source for reproducible runs.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithLogger configures structured logging for graph operations.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		iterations:        PartitioningIterations,
		imbalance:         DefaultImbalance,
		searchSpeedup:     DefaultSearchSpeedup,
		medoidUpdateRatio: DefaultMedoidUpdateRatio,
		logger:            NoopLogger(),
		metricsCollector:  NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
