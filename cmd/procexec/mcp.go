package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/deixis/procexec/internal/config"
	"github.com/deixis/procexec/internal/logging"
	procmcp "github.com/deixis/procexec/internal/mcp"
	"github.com/deixis/procexec/internal/report"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the MCP server on stdin/stdout, or on an HTTP address with --http.
The client's first workspace root replaces the working directory.`,
		Args: cobra.NoArgs,
		RunE: runMCP,
	}
	cmd.Flags().Bool("instructions", false, "Print model instructions and exit")
	cmd.Flags().String("http", "", "Start an HTTP server on address (e.g. :9090)")
	return cmd
}

func runMCP(cmd *cobra.Command, _ []string) error {
	if instructions, _ := cmd.Flags().GetBool("instructions"); instructions {
		fmt.Fprint(cmd.OutOrStdout(), procmcp.Instructions)
		return nil
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	httpAddr, _ := cmd.Flags().GetString("http")

	disk := report.NewDiskStore(e.cfg.RunStoreDir())
	store := report.NewLRUStore(config.DefaultStoreSize, disk)
	server := procmcp.NewServer(e.cfg, store, e.root, logging.Sink(e.logger, slog.LevelDebug))

	if httpAddr != "" {
		return serveHTTP(cmd.Context(), e.logger, server, httpAddr)
	}
	return server.Run(cmd.Context(), &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, logger *slog.Logger, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
