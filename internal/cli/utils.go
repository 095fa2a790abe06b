// Package cli provides the HTTP client and output formatting used by the Kensaku CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const snippetLength = 200

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.Rank, r.Score, Location(r.SourceID, r.PageNumber, r.ChunkNumber), r.ID,
				utils.Truncate(utils.OneLine(r.Text), 80))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms for %q\n\n", response.Total, response.QueryTime, response.Query)
	for _, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Distance: %s\n", result.Rank, result.Score)
		fmt.Fprintf(w, "ID: %s\n", result.ID)
		if loc := Location(result.SourceID, result.PageNumber, result.ChunkNumber); loc != "" {
			fmt.Fprintf(w, "Source: %s\n", loc)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(utils.OneLine(result.Text), snippetLength))
	}
}

// Location renders where a fragment came from, e.g. "report.pdf p.3 #2".
func Location(sourceID string, page, chunk *int) string {
	parts := make([]string, 0, 3)
	if sourceID != "" {
		parts = append(parts, sourceID)
	}
	if page != nil {
		parts = append(parts, fmt.Sprintf("p.%d", *page))
	}
	if chunk != nil {
		parts = append(parts, fmt.Sprintf("#%d", *chunk))
	}
	return strings.Join(parts, " ")
}

// WriteFileReports writes upload or ingest reports to w. Failed fragments are listed in text output.
func WriteFileReports(w io.Writer, reports []models.FileReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, reports)
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%-8s %s: %s\n", r.Status, r.Filename, r.Message)
		if format == OutputCompact {
			continue
		}
		for _, o := range r.Outcomes {
			if o.OK() {
				continue
			}
			fmt.Fprintf(w, "         - %s: %s\n", Location(o.Fragment.SourceID, o.Fragment.PageNumber, o.Fragment.ChunkNumber), o.Detail)
		}
	}
	return nil
}

// WriteStatus writes a server status report to w.
func WriteStatus(w io.Writer, status *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "fragments:          %d   # records in the vector store\n", status.Fragments)
	fmt.Fprintf(w, "documents:          %d   # files in the ingestion ledger\n", status.Documents)
	fmt.Fprintf(w, "dimensions:         %d\n", status.Dimensions)
	fmt.Fprintf(w, "metric:             %s\n", status.Metric)
	if status.DatabaseSizeBytes != nil {
		fmt.Fprintf(w, "database_size:      %d   # ledger on disk, bytes\n", *status.DatabaseSizeBytes)
	}
	if status.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "embedding_provider: %s\n", status.Config.EmbeddingProvider)
		fmt.Fprintf(w, "chunk_size:         %d\n", status.Config.ChunkSize)
		fmt.Fprintf(w, "chunk_overlap:      %d\n", status.Config.ChunkOverlap)
		fmt.Fprintf(w, "default_top_k:      %d\n", status.Config.DefaultTopK)
		if status.Config.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", status.Config.DatabasePath)
		}
		for _, d := range status.Config.WatchDirectories {
			fmt.Fprintf(w, "watch_directory:    %s\n", d)
		}
	}
	return nil
}
