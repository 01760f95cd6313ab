package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hypergraphs/knng/graph"
)

// ReadLines reads a line-oriented text corpus (one item per line, such as the
// classic SPAM subject-line corpus) into string-valued nodes. Node IDs are
// the zero-based line numbers. Empty lines are kept: line numbering must
// stay aligned with the file.
func ReadLines(r io.Reader) ([]graph.Node[string], error) {
	var nodes []graph.Node[string]

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for i := 0; scanner.Scan(); i++ {
		nodes = append(nodes, graph.NewNode(graph.NodeID(LineID(i)), scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read lines: %w", err)
	}
	return nodes, nil
}

// LineID formats the node ID used for line i of a corpus.
func LineID(i int) string {
	return strconv.Itoa(i)
}

// ReadLinesFile reads a line-oriented corpus from a file.
func ReadLinesFile(path string) ([]graph.Node[string], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLines(f)
}
