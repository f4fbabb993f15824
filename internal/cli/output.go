// Package cli provides output formatting and an HTTP client for the kotae CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/wiki"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat returns the OutputFormat named s.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

// WriteAnswer writes an answer. Text output shows the plan and partial answers
// when verbose is set.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat, verbose bool) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if verbose {
		fmt.Fprintf(w, "\nPlan (%d sub-questions, %dms)\n", len(resp.Plan), resp.QueryTime)
		for i, p := range resp.Partials {
			fmt.Fprintln(w, rule)
			status := "answered"
			switch {
			case !p.Answered:
				status = "no answer"
			case p.Fallback:
				status = "answered via summary fallback"
			}
			fmt.Fprintf(w, "[%d] %s -> %s (%s)\n", i+1, p.Target, p.Strategy, status)
			fmt.Fprintf(w, "Q: %s\n", p.Question)
			if p.Answered {
				fmt.Fprintf(w, "A: %s\n", utils.Truncate(p.Answer, 300))
			}
		}
		fmt.Fprintln(w, rule)
	}
	fmt.Fprintln(w, resp.Answer)
	return nil
}

// WritePlan writes a decomposition plan.
func WritePlan(w io.Writer, resp *models.PlanResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if len(resp.Plan) == 0 {
		fmt.Fprintln(w, "No sub-questions.")
		return nil
	}
	for i, u := range resp.Plan {
		fmt.Fprintf(w, "%d. [%s] %s: %s\n", i+1, u.Strategy, u.Target, u.Question)
	}
	return nil
}

// WriteStatus writes engine and corpus status.
func WriteStatus(w io.Writer, status *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Documents:         %d\n", status.Documents)
	fmt.Fprintf(w, "Chunks:            %d\n", status.Chunks)
	fmt.Fprintf(w, "Vector index size: %d\n", status.VectorIndexSize)
	if len(status.Corpus) > 0 {
		fmt.Fprintf(w, "Corpus:            %s\n", strings.Join(status.Corpus, ", "))
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage:        %s\n", FormatBytes(*status.DiskUsageBytes))
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w, "\nConfiguration:")
		fmt.Fprintf(w, "  LLM:               %s (%s)\n", c.LLMModel, c.LLMProvider)
		fmt.Fprintf(w, "  Embedding:         %s, %d dims\n", c.EmbeddingProvider, c.EmbeddingDimensions)
		fmt.Fprintf(w, "  Vector index type: %s\n", c.VectorIndexType)
		fmt.Fprintf(w, "  Top K:             %d\n", c.TopK)
		fmt.Fprintf(w, "  Plan policy:       %s\n", c.PlanPolicy)
		fmt.Fprintf(w, "  Max summary chars: %d\n", c.MaxSummaryChars)
		if c.ChunkSize > 0 {
			fmt.Fprintf(w, "  Chunk size:        %d (overlap %d)\n", c.ChunkSize, c.ChunkOverlap)
		}
		if c.DatabasePath != "" {
			fmt.Fprintf(w, "  Database:          %s\n", c.DatabasePath)
		}
		if c.BleveIndexPath != "" {
			fmt.Fprintf(w, "  Bleve index:       %s\n", c.BleveIndexPath)
		}
	}
	return nil
}

// WriteCorpusReport writes the result of an ingest run.
func WriteCorpusReport(w io.Writer, report *indexer.CorpusReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Indexed: %d, skipped (unchanged): %d, missing: %d, failed: %d\n",
		len(report.Indexed), len(report.Skipped), len(report.Missing), len(report.Failed))
	writeList(w, "indexed", report.Indexed)
	writeList(w, "skipped", report.Skipped)
	writeList(w, "missing", report.Missing)
	writeFailures(w, report.Failed)
	return nil
}

// WriteFetchReport writes the result of a fetch run.
func WriteFetchReport(w io.Writer, report *wiki.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Fetched: %d, failed: %d\n", len(report.Written), len(report.Failed))
	writeList(w, "written", report.Written)
	writeFailures(w, report.Failed)
	return nil
}

func writeList(w io.Writer, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(items, ", "))
	}
}

func writeFailures(w io.Writer, failed map[string]string) {
	keys := make([]string, 0, len(failed))
	for k := range failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  failed %s: %s\n", k, failed[k])
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
