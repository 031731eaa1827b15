package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"allocguard/internal/config"
	"allocguard/internal/reporter"
	"allocguard/internal/rewriter"
	"allocguard/internal/scanner"
	"allocguard/internal/store"
	"allocguard/internal/watcher"
)

var version = "0.3.1"

func main() {
	// Define flags
	configFlag := flag.String("config", "", "Path to a YAML rewrite profile (defaults to built-in profile)")
	excludeFlag := flag.String("exclude", "", "Comma-separated gitignore-style patterns to exclude (e.g., vendor,build)")
	jsonFlag := flag.Bool("json", false, "Output results in JSON format")
	dryRunFlag := flag.Bool("dry-run", false, "Analyze and report without writing any file")
	watchFlag := flag.Bool("watch", false, "Keep running and rewrite files as they change")
	dbFlag := flag.String("db", "", "Also record analysis results into this SQLite index")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: allocguard [options] <path> [paths...]\n\n")
		fmt.Fprintf(os.Stderr, "Allocation Guard - rewrites C sources so every heap allocation failure is checked and propagated\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  allocguard ./src                      Rewrite all C files in ./src in place\n")
		fmt.Fprintf(os.Stderr, "  allocguard --dry-run --json ./src     Report planned rewrites as JSON without writing\n")
		fmt.Fprintf(os.Stderr, "  allocguard --exclude=vendor ./        Rewrite everything except the vendor directory\n")
		fmt.Fprintf(os.Stderr, "  allocguard --watch ./src              Rewrite files as they change\n")
	}

	flag.Parse()

	if *helpFlag {
		flag.Usage()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("allocguard version %s\n", version)
		os.Exit(0)
	}

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Error: No paths specified")
		fmt.Fprintln(os.Stderr, "Run 'allocguard --help' for usage")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFlag, *excludeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	s := scanner.NewScanner(cfg)
	files, err := s.ScanPaths(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning paths: %v\n", err)
		os.Exit(1)
	}

	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "No C files found")
		os.Exit(0)
	}

	if !*jsonFlag {
		fmt.Printf("Processing %d file(s)...\n", len(files))
	}

	results := processFiles(files, cfg, *dryRunFlag)

	if *dbFlag != "" {
		if err := recordResults(*dbFlag, results); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating index: %v\n", err)
			os.Exit(1)
		}
	}

	r := reporter.NewReporter(os.Stdout, *jsonFlag)
	if err := r.Report(results); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}

	failed := false
	for _, res := range results {
		if res.Error != "" {
			failed = true
		}
	}

	if *watchFlag {
		if err := watchPaths(paths, cfg, *dryRunFlag, *jsonFlag); err != nil && err != context.Canceled {
			fmt.Fprintf(os.Stderr, "Error watching: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if failed {
		os.Exit(1)
	}
}

// loadConfig builds the profile from the optional YAML file and merges the
// command-line excludes on top.
func loadConfig(path, excludes string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if excludes != "" {
		for _, pattern := range strings.Split(excludes, ",") {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				cfg.Excludes = append(cfg.Excludes, pattern)
			}
		}
	}
	return cfg, nil
}

// processFiles runs the pipeline over every file, writing results back in
// place unless dryRun is set.
func processFiles(files []string, cfg *config.Config, dryRun bool) []reporter.FileResult {
	results := make([]reporter.FileResult, 0, len(files))
	for _, path := range files {
		results = append(results, processFile(path, cfg, dryRun))
	}
	return results
}

func processFile(path string, cfg *config.Config, dryRun bool) reporter.FileResult {
	res := reporter.FileResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	out, err := rewriter.Rewrite(string(data), cfg)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Result = out

	if out.Changed && !dryRun {
		info, err := os.Stat(path)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		if err := os.WriteFile(path, []byte(out.Output), info.Mode()); err != nil {
			res.Error = err.Error()
			return res
		}
	}
	return res
}

// recordResults writes the analysis of every successfully processed file
// into the SQLite index.
func recordResults(dbPath string, results []reporter.FileResult) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	for _, res := range results {
		if res.Error != "" || res.Result == nil {
			continue
		}
		data, err := os.ReadFile(res.Path)
		if err != nil {
			continue
		}
		if err := st.ReplaceFile(ctx, res.Path, store.ContentHash(data), res.Result.Functions); err != nil {
			return err
		}
	}
	return nil
}

// watchPaths blocks rewriting changed files until interrupted.
func watchPaths(paths []string, cfg *config.Config, dryRun, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := reporter.NewReporter(os.Stdout, jsonOutput)
	w, err := watcher.New(paths, cfg.ExtensionSet(), func(path string) {
		result := processFile(path, cfg, dryRun)
		// A rewrite triggers one more event for the same file; the
		// unchanged re-analysis reports nothing.
		if result.Error == "" && (result.Result == nil || !result.Result.Changed) {
			return
		}
		if err := r.Report([]reporter.FileResult{result}); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if !jsonOutput {
		fmt.Println("Watching for changes, Ctrl-C to stop...")
	}
	return w.Run(ctx)
}
