package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"allocguard/internal/rewriter"
)

func sampleResults() []FileResult {
	return []FileResult{
		{
			Path: "b.c",
			Result: &rewriter.Result{
				Changed: true,
				Functions: []rewriter.FunctionReport{
					{Name: "grow", Line: 2, Shape: "void", Marked: true, Rewritten: true, Transform: "void_to_int"},
					{Name: "odd", Line: 9, Shape: "other", Marked: true, Transform: "skipped",
						Sites: []rewriter.SiteReport{{Allocator: "malloc", Line: 10}}},
				},
			},
		},
		{
			Path: "a.c",
			Result: &rewriter.Result{
				Functions: []rewriter.FunctionReport{
					{Name: "add", Line: 1, Shape: "other", Transform: "unchanged"},
				},
			},
		},
		{Path: "c.c", Error: "lex: unterminated block comment"},
	}
}

func TestReportConsole(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, false)
	if err := r.Report(sampleResults()); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"b.c:",
		"Line 2: grow (void_to_int)",
		"Line 9: odd left verbatim",
		"unchecked malloc at line 10",
		"[ERROR] lex: unterminated block comment",
		"1 file(s) changed, 1 function(s) rewritten, 1 skipped, 1 error(s)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
	// a.c had nothing to say.
	if strings.Contains(out, "a.c:") {
		t.Errorf("unchanged file reported:\n%s", out)
	}
}

func TestReportConsoleAllClean(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, false)
	if err := r.Report([]FileResult{{Path: "a.c", Result: &rewriter.Result{}}}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Nothing to rewrite") {
		t.Errorf("output: %s", buf.String())
	}
}

func TestReportJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, true)
	if err := r.Report(sampleResults()); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	var out struct {
		Files   []FileResult `json:"files"`
		Summary Summary      `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}

	if len(out.Files) != 3 {
		t.Fatalf("got %d files, want 3", len(out.Files))
	}
	// Sorted by path.
	if out.Files[0].Path != "a.c" || out.Files[2].Path != "c.c" {
		t.Errorf("files not sorted: %+v", out.Files)
	}
	if out.Summary.FilesScanned != 3 || out.Summary.FilesChanged != 1 ||
		out.Summary.Rewritten != 1 || out.Summary.Skipped != 1 || out.Summary.Errors != 1 {
		t.Errorf("summary: %+v", out.Summary)
	}
	if len(out.Files[1].Report) != 2 {
		t.Errorf("b.c functions not embedded: %+v", out.Files[1])
	}
}

func TestReportJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, true)
	if err := r.Report(nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\"files\": []") {
		t.Errorf("output: %s", buf.String())
	}
}
