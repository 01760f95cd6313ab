// Command knng builds, queries and benchmarks distributed approximate k-NN
// graphs from a YAML config.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	knng "github.com/hypergraphs/knng"
	"github.com/hypergraphs/knng/builder"
	"github.com/hypergraphs/knng/dataset"
	"github.com/hypergraphs/knng/distgraph"
	"github.com/hypergraphs/knng/pcoll"
	"github.com/hypergraphs/knng/search"
	"github.com/hypergraphs/knng/similarity"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "knng",
		Short:         "Distributed approximate k-NN graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "knng.yaml", "path to config file")

	root.AddCommand(buildCommand(&configPath))
	root.AddCommand(searchCommand(&configPath))
	root.AddCommand(benchCommand(&configPath))
	return root
}

func newContext(cfg *Config) *pcoll.Context {
	return pcoll.NewContext(func(o *pcoll.ContextOptions) {
		o.Parallelism = cfg.Parallelism
	})
}

func buildCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the exact k-NN graph for the configured dataset and save a snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			compression, err := cfg.compression()
			if err != nil {
				return err
			}
			if cfg.Snapshot == "" {
				return fmt.Errorf("config: snapshot path required for build")
			}

			ctx := cmd.Context()
			pctx := newContext(cfg)

			start := time.Now()
			var edge *pcoll.Collection[distgraph.Tuple[[]float64]]
			var stringEdge *pcoll.Collection[distgraph.Tuple[string]]

			switch cfg.Dataset.Kind {
			case "gaussian":
				nodes, err := cfg.vectorNodes()
				if err != nil {
					return err
				}
				brute, err := builder.NewBrute(cfg.K, similarity.L2)
				if err != nil {
					return err
				}
				edge, err = brute.ComputeGraph(ctx, pcoll.FromSlice(pctx, nodes, cfg.Partitions))
				if err != nil {
					return err
				}
			case "lines":
				nodes, err := dataset.ReadLinesFile(cfg.Dataset.Path)
				if err != nil {
					return err
				}
				brute, err := builder.NewBrute(cfg.K, similarity.JaroWinkler)
				if err != nil {
					return err
				}
				stringEdge, err = brute.ComputeGraph(ctx, pcoll.FromSlice(pctx, nodes, cfg.Partitions))
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("config: unknown dataset kind %q", cfg.Dataset.Kind)
			}

			f, err := os.Create(cfg.Snapshot)
			if err != nil {
				return err
			}
			defer f.Close()

			var count int
			if edge != nil {
				if err := distgraph.Save(ctx, edge, f, compression); err != nil {
					return err
				}
				count, _ = edge.Count(ctx)
			} else {
				if err := distgraph.Save(ctx, stringEdge, f, compression); err != nil {
					return err
				}
				count, _ = stringEdge.Count(ctx)
			}

			fmt.Printf("built %d nodes in %s, snapshot %s\n", count, time.Since(start).Round(time.Millisecond), cfg.Snapshot)
			return f.Sync()
		},
	}
}

func searchCommand(configPath *string) *cobra.Command {
	var budget int

	cmd := &cobra.Command{
		Use:   "search [query line]",
		Short: "Query a built snapshot",
		Long: "Query a built snapshot. For a lines dataset pass the query text as the " +
			"argument; for a gaussian dataset the first point of a fresh draw is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pctx := newContext(cfg)

			f, err := os.Open(cfg.Snapshot)
			if err != nil {
				return err
			}
			defer f.Close()

			if budget <= 0 {
				budget = 4 * cfg.K * cfg.Partitions
			}

			switch cfg.Dataset.Kind {
			case "lines":
				if len(args) != 1 {
					return fmt.Errorf("search: a lines dataset needs one query argument")
				}
				edge, err := distgraph.Load[string](pctx, f)
				if err != nil {
					return err
				}
				s, err := search.New(ctx, edge, cfg.Iterations, cfg.Partitions, similarity.JaroWinkler)
				if err != nil {
					return err
				}
				return runQuery(ctx, s, args[0], cfg.K, budget)
			case "gaussian":
				edge, err := distgraph.Load[[]float64](pctx, f)
				if err != nil {
					return err
				}
				s, err := search.New(ctx, edge, cfg.Iterations, cfg.Partitions, similarity.L2)
				if err != nil {
					return err
				}
				nodes, err := cfg.vectorNodes()
				if err != nil {
					return err
				}
				if len(nodes) == 0 {
					return fmt.Errorf("search: empty dataset")
				}
				return runQuery(ctx, s, nodes[0].Value, cfg.K, budget)
			default:
				return fmt.Errorf("config: unknown dataset kind %q", cfg.Dataset.Kind)
			}
		},
	}
	cmd.Flags().IntVar(&budget, "budget", 0, "similarity budget (default 4*k*partitions)")
	return cmd
}

func runQuery[T any](ctx context.Context, s *search.ApproximateSearch[T], query T, k, budget int) error {
	start := time.Now()
	nl, err := s.Search(ctx, query, k, budget)
	if err != nil {
		return err
	}
	fmt.Printf("%d results in %s\n", nl.Len(), time.Since(start).Round(time.Microsecond))
	for nb := range nl.All() {
		fmt.Printf("  %-40s %.6f\n", nb.ID, nb.Similarity)
	}
	return nil
}

func benchCommand(configPath *string) *cobra.Command {
	var inserts int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure online insertion throughput on a gaussian dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Dataset.Kind != "gaussian" {
				return fmt.Errorf("bench: only the gaussian dataset is supported")
			}

			ctx := cmd.Context()
			pctx := newContext(cfg)

			nodes, err := cfg.vectorNodes()
			if err != nil {
				return err
			}
			if len(nodes) <= inserts {
				return fmt.Errorf("bench: dataset size %d too small for %d inserts", len(nodes), inserts)
			}

			initial, toInsert := nodes[:len(nodes)-inserts], nodes[len(nodes)-inserts:]

			brute, err := builder.NewBrute(cfg.K, similarity.L2)
			if err != nil {
				return err
			}
			edge, err := brute.ComputeGraph(ctx, pcoll.FromSlice(pctx, initial, cfg.Partitions))
			if err != nil {
				return err
			}

			online, err := knng.NewOnline(ctx, cfg.K, similarity.L2, edge, cfg.Partitions,
				knng.WithIterations(cfg.Iterations),
				knng.WithImbalance(cfg.Imbalance))
			if err != nil {
				return err
			}

			start := time.Now()
			for _, node := range toInsert {
				if err := online.AddNode(ctx, node); err != nil {
					return err
				}
			}
			elapsed := time.Since(start)
			fmt.Printf("inserted %d nodes in %s (%.1f nodes/s), size %d\n",
				inserts, elapsed.Round(time.Millisecond),
				float64(inserts)/elapsed.Seconds(), online.Size())
			return nil
		},
	}
	cmd.Flags().IntVar(&inserts, "inserts", 200, "number of nodes to insert online")
	return cmd
}
