package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"allocguard/internal/rewriter"
	"allocguard/internal/store"
)

// Arguments structs

type IndexArgs struct {
	Paths []string `json:"paths" jsonschema:"description:Files or directories to index; defaults to the current directory"`
	Force bool     `json:"force" jsonschema:"description:Re-analyze files even when their content hash is unchanged"`
}

type AnalyzeFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description:The path of the C file to analyze"`
}

type PreviewRewriteArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description:The path of the C file to rewrite; the result is returned, not written"`
}

type RewriteFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description:The path of the C file to rewrite in place"`
}

type ListUncheckedSitesArgs struct {
	FilePath string `json:"file_path" jsonschema:"description:Restrict to one indexed file; empty means all indexed files"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "index",
		Description: "Scans the given paths for C files and records their allocation analysis in the index",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args IndexArgs) (*mcp.CallToolResult, any, error) {
		paths := args.Paths
		if len(paths) == 0 {
			paths = []string{"."}
		}
		files, err := s.scan.ScanPaths(paths)
		if err != nil {
			return errorResult(fmt.Sprintf("Scan failed: %v", err)), nil, nil
		}

		indexed, skipped, failed := 0, 0, 0
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				failed++
				continue
			}
			hash := store.ContentHash(data)
			if !args.Force {
				stored, err := s.store.FileHash(ctx, path)
				if err == nil && stored == hash {
					skipped++
					continue
				}
			}
			res, err := rewriter.Rewrite(string(data), s.cfg)
			if err != nil {
				failed++
				continue
			}
			if err := s.store.ReplaceFile(ctx, path, hash, res.Functions); err != nil {
				return errorResult(fmt.Sprintf("Failed to store %s: %v", path, err)), nil, nil
			}
			indexed++
		}
		msg := fmt.Sprintf("Indexed %d file(s), %d unchanged, %d failed", indexed, skipped, failed)
		return textResult(msg), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "analyze_file",
		Description: "Analyzes one C file and reports its functions, allocation sites and planned transforms without modifying it",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args AnalyzeFileArgs) (*mcp.CallToolResult, any, error) {
		res, err := s.analyze(args.FilePath)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		jsonBytes, err := json.MarshalIndent(res.Functions, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to encode report: %v", err)), nil, nil
		}
		return textResult(string(jsonBytes)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "preview_rewrite",
		Description: "Returns the rewritten text of one C file without writing anything to disk",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PreviewRewriteArgs) (*mcp.CallToolResult, any, error) {
		res, err := s.analyze(args.FilePath)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		if !res.Changed {
			return textResult("No changes needed."), nil, nil
		}
		return textResult(res.Output), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "rewrite_file",
		Description: "Rewrites one C file in place so every allocation failure is checked and propagated, and updates the index",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RewriteFileArgs) (*mcp.CallToolResult, any, error) {
		res, err := s.analyze(args.FilePath)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		if !res.Changed {
			return textResult("No changes needed."), nil, nil
		}
		info, err := os.Stat(args.FilePath)
		if err != nil {
			return errorResult(fmt.Sprintf("Stat failed: %v", err)), nil, nil
		}
		if err := os.WriteFile(args.FilePath, []byte(res.Output), info.Mode()); err != nil {
			return errorResult(fmt.Sprintf("Write failed: %v", err)), nil, nil
		}
		abs, err := filepath.Abs(args.FilePath)
		if err != nil {
			abs = args.FilePath
		}
		if err := s.store.ReplaceFile(ctx, abs, store.ContentHash([]byte(res.Output)), res.Functions); err != nil {
			return errorResult(fmt.Sprintf("Rewrote file but failed to update index: %v", err)), nil, nil
		}
		rewritten := 0
		for _, fn := range res.Functions {
			if fn.Rewritten {
				rewritten++
			}
		}
		return textResult(fmt.Sprintf("Rewrote %d function(s) in %s", rewritten, args.FilePath)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_unchecked_sites",
		Description: "Lists unchecked allocation sites recorded in the index, optionally for one file",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListUncheckedSitesArgs) (*mcp.CallToolResult, any, error) {
		path := args.FilePath
		if path != "" {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		sites, err := s.store.UncheckedSites(ctx, path)
		if err != nil {
			return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
		}
		if len(sites) == 0 {
			return textResult("No unchecked allocation sites found."), nil, nil
		}
		jsonBytes, err := json.MarshalIndent(sites, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to encode sites: %v", err)), nil, nil
		}
		return textResult(string(jsonBytes)), nil, nil
	})
}

// analyze reads and runs the pipeline over one file.
func (s *Server) analyze(path string) (*rewriter.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Read failed: %v", err)
	}
	res, err := rewriter.Rewrite(string(data), s.cfg)
	if err != nil {
		return nil, fmt.Errorf("Analysis failed: %v", err)
	}
	return res, nil
}
