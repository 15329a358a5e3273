// Package batch drives the schema miner over a CSV of sources, writing
// per-dataset output files and aggregating a succeeded/failed/skipped
// summary with row-order preserved across all three lists.
package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Source is one row of the sources CSV: a dataset to mine.
type Source struct {
	DatasetName string
	EndpointURL string
	GraphURI    string
	UseGraph    bool
	TwoPhase    bool // parsed for forward compatibility; mining is always single-phase
}

// GraphURIs resolves the source's effective named-graph restriction:
// [GraphURI] when UseGraph is set and GraphURI is non-empty, nil
// otherwise.
func (s Source) GraphURIs() []string {
	if s.UseGraph && s.GraphURI != "" {
		return []string{s.GraphURI}
	}
	return nil
}

// ParseSources reads a UTF-8, header-row, comma-separated sources file
// with columns dataset_name, endpoint_url, graph_uri, use_graph,
// two_phase (order irrelevant, matched by name).
func ParseSources(r io.Reader) ([]Source, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading sources header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"dataset_name", "endpoint_url"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("sources CSV missing required column %q", required)
		}
	}

	var sources []Source
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading sources row: %w", err)
		}

		sources = append(sources, Source{
			DatasetName: field(row, col, "dataset_name"),
			EndpointURL: field(row, col, "endpoint_url"),
			GraphURI:    field(row, col, "graph_uri"),
			UseGraph:    parseBool(field(row, col, "use_graph")),
			TwoPhase:    parseBool(field(row, col, "two_phase")),
		})
	}

	return sources, nil
}

func field(row []string, col map[string]int, name string) string {
	idx, ok := col[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
