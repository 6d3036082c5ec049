// Command mcp exposes statement extraction as an MCP tool over stdio.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/merchant-statements/internal/bootstrap"
	"github.com/kirillkom/merchant-statements/internal/config"
	"github.com/kirillkom/merchant-statements/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stderr, "mcp", cfg.LogLevel)

	pipeline, err := bootstrap.NewExtraction(cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}

	s := server.NewMCPServer("merchant-statements", "1.0.0", server.WithToolCapabilities(false))

	extractTool := mcp.NewTool("extract_statement",
		mcp.WithDescription("Extract merchant, period, card volumes, fees and totals from a merchant processing statement (PDF or XLSX)."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path of the statement file"),
		),
		mcp.WithString("processor",
			mcp.Description("Processor name to use instead of detection, e.g. \"Chase Paymentech\""),
		),
	)
	s.AddTool(extractTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := pipeline.ExtractFile(ctx, path, request.GetString("processor", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		payload, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return nil, err
		}
		if res.Failed() {
			return mcp.NewToolResultError(string(payload)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	})

	processorsTool := mcp.NewTool("list_processors",
		mcp.WithDescription("List the processors whose statements can be parsed."),
	)
	s.AddTool(processorsTool, func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := json.Marshal(pipeline.Registry.Processors())
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(payload)), nil
	})

	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
