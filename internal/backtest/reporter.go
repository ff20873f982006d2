package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Reporter generates backtest reports
type Reporter struct {
	results []*Results
}

// NewReporter creates a new reporter
func NewReporter(results ...*Results) *Reporter {
	return &Reporter{results: results}
}

// PrintSummary writes a human-readable summary of every run to w
func (r *Reporter) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "BACKTEST RESULTS SUMMARY\n")
	fmt.Fprintf(w, "========================\n")

	for _, res := range r.results {
		fmt.Fprintf(w, "\nSource: %s\n", res.Source)
		fmt.Fprintf(w, "Context Size: %d\n", res.ContextSize)
		fmt.Fprintf(w, "Inputs: %d\n", res.Inputs)
		fmt.Fprintf(w, "Predictions: %d\n", res.Predictions)
		fmt.Fprintf(w, "Correct: %d\n", res.Correct)
		fmt.Fprintf(w, "Accuracy: %.2f%%\n", res.Accuracy*100)
		fmt.Fprintf(w, "Fallbacks: %d (%d correct)\n", res.Fallbacks, res.FallbackCorrect)
		fmt.Fprintf(w, "Contexts Learned: %d\n", res.Contexts)
		fmt.Fprintf(w, "Longest Correct Run: %d\n", res.LongestRun)
	}
}

// WriteJSON writes every run to path as a JSON report
func (r *Reporter) WriteJSON(path string) error {
	report := map[string]any{
		"runs":         r.results,
		"generated_at": time.Now().UTC(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", path).Msg("JSON report generated")
	return nil
}

// WriteCSV writes one row per run to path
func (r *Reporter) WriteCSV(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"source", "context_size", "inputs", "predictions", "correct",
		"accuracy", "fallbacks", "fallback_correct", "contexts", "longest_correct_run",
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, res := range r.results {
		record := []string{
			res.Source,
			strconv.Itoa(res.ContextSize),
			strconv.Itoa(res.Inputs),
			strconv.Itoa(res.Predictions),
			strconv.Itoa(res.Correct),
			fmt.Sprintf("%.4f", res.Accuracy),
			strconv.Itoa(res.Fallbacks),
			strconv.Itoa(res.FallbackCorrect),
			strconv.Itoa(res.Contexts),
			strconv.Itoa(res.LongestRun),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write CSV report: %w", err)
	}

	log.Info().Str("file", path).Msg("CSV report generated")
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
