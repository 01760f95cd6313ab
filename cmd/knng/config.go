package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hypergraphs/knng/dataset"
	"github.com/hypergraphs/knng/graph"
	"github.com/hypergraphs/knng/persistence"
)

// Config drives the CLI. All commands share one file so a built snapshot and
// the queries against it always agree on k and similarity.
type Config struct {
	Dataset struct {
		Kind    string `yaml:"kind"` // gaussian | lines
		Path    string `yaml:"path"`
		Centers int    `yaml:"centers"`
		Dim     int    `yaml:"dim"`
		Overlap string `yaml:"overlap"` // low | medium | high
		Size    int    `yaml:"size"`
		Seed    uint64 `yaml:"seed"`
	} `yaml:"dataset"`

	K           int     `yaml:"k"`
	Partitions  int     `yaml:"partitions"`
	Iterations  int     `yaml:"iterations"`
	Imbalance   float64 `yaml:"imbalance"`
	Snapshot    string  `yaml:"snapshot"`
	Compression string  `yaml:"compression"` // none | s2 | lz4
	Parallelism int     `yaml:"parallelism"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		K:           10,
		Partitions:  4,
		Iterations:  5,
		Imbalance:   1.05,
		Compression: "s2",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) compression() (persistence.Compression, error) {
	switch c.Compression {
	case "", "s2":
		return persistence.CompressionS2, nil
	case "none":
		return persistence.CompressionNone, nil
	case "lz4":
		return persistence.CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", c.Compression)
	}
}

func (c *Config) overlap() (dataset.Overlap, error) {
	switch c.Dataset.Overlap {
	case "low":
		return dataset.OverlapLow, nil
	case "", "medium":
		return dataset.OverlapMedium, nil
	case "high":
		return dataset.OverlapHigh, nil
	default:
		return 0, fmt.Errorf("unknown overlap %q", c.Dataset.Overlap)
	}
}

// vectorNodes materializes the configured dataset as vector nodes. Only the
// gaussian kind yields vectors; the lines kind is handled separately because
// it changes the payload type.
func (c *Config) vectorNodes() ([]graph.Node[[]float64], error) {
	if c.Dataset.Kind != "gaussian" {
		return nil, fmt.Errorf("dataset kind %q does not produce vectors", c.Dataset.Kind)
	}
	overlap, err := c.overlap()
	if err != nil {
		return nil, err
	}

	b := dataset.NewBuilder(c.Dataset.Centers, c.Dataset.Dim).
		Overlap(overlap).
		Size(c.Dataset.Size)
	if c.Dataset.Seed != 0 {
		b = b.Seed(c.Dataset.Seed)
	}
	return b.Build()
}
