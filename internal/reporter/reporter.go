// Package reporter formats the per-file rewrite outcomes for the CLI.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"allocguard/internal/rewriter"
)

// FileResult pairs a rewrite outcome with the file it came from.
type FileResult struct {
	Path   string                    `json:"path"`
	Error  string                    `json:"error,omitempty"`
	Result *rewriter.Result          `json:"-"`
	Report []rewriter.FunctionReport `json:"functions,omitempty"`
}

// Reporter formats and outputs rewrite results.
type Reporter struct {
	output io.Writer
	json   bool
}

// NewReporter creates a new reporter.
func NewReporter(output io.Writer, jsonOutput bool) *Reporter {
	return &Reporter{
		output: output,
		json:   jsonOutput,
	}
}

// Report outputs the results for all processed files.
func (r *Reporter) Report(results []FileResult) error {
	// Sort by path for stable output.
	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
	if r.json {
		return r.reportJSON(results)
	}
	return r.reportConsole(results)
}

func (r *Reporter) reportConsole(results []FileResult) error {
	sum := summarize(results)

	for _, res := range results {
		if res.Error != "" {
			fmt.Fprintf(r.output, "\n%s:\n  [ERROR] %s\n", res.Path, res.Error)
			continue
		}
		if res.Result == nil || !res.Result.Changed {
			continue
		}
		fmt.Fprintf(r.output, "\n%s:\n", res.Path)
		for _, fn := range res.Result.Functions {
			switch {
			case fn.Rewritten && fn.Entry:
				fmt.Fprintf(r.output, "  [OK]   Line %d: %s (entry, body guards only)\n", fn.Line, fn.Name)
			case fn.Rewritten:
				fmt.Fprintf(r.output, "  [OK]   Line %d: %s (%s)\n", fn.Line, fn.Name, fn.Transform)
			case fn.Marked:
				fmt.Fprintf(r.output, "  [WARN] Line %d: %s left verbatim, shape not rewritable\n", fn.Line, fn.Name)
			}
			for _, site := range fn.Sites {
				if !site.Checked && !fn.Rewritten {
					fmt.Fprintf(r.output, "         -> unchecked %s at line %d\n", site.Allocator, site.Line)
				}
			}
		}
	}

	if sum.FilesChanged == 0 && sum.Errors == 0 {
		fmt.Fprintln(r.output, "[OK] Nothing to rewrite.")
		return nil
	}
	fmt.Fprintf(r.output, "\nSummary: %d file(s) changed, %d function(s) rewritten, %d skipped, %d error(s)\n",
		sum.FilesChanged, sum.Rewritten, sum.Skipped, sum.Errors)
	return nil
}

func (r *Reporter) reportJSON(results []FileResult) error {
	for i := range results {
		if results[i].Result != nil {
			results[i].Report = results[i].Result.Functions
		}
	}
	output := struct {
		Files   []FileResult `json:"files"`
		Summary Summary      `json:"summary"`
	}{
		Files:   results,
		Summary: summarize(results),
	}
	if output.Files == nil {
		output.Files = []FileResult{}
	}

	encoder := json.NewEncoder(r.output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// Summary holds aggregate information about a run.
type Summary struct {
	FilesScanned int `json:"files_scanned"`
	FilesChanged int `json:"files_changed"`
	Rewritten    int `json:"functions_rewritten"`
	Skipped      int `json:"functions_skipped"`
	Errors       int `json:"errors"`
}

func summarize(results []FileResult) Summary {
	var sum Summary
	sum.FilesScanned = len(results)
	for _, res := range results {
		if res.Error != "" {
			sum.Errors++
			continue
		}
		if res.Result == nil {
			continue
		}
		if res.Result.Changed {
			sum.FilesChanged++
		}
		for _, fn := range res.Result.Functions {
			switch {
			case fn.Rewritten:
				sum.Rewritten++
			case fn.Marked:
				sum.Skipped++
			}
		}
	}
	return sum
}
