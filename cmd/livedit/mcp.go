package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/standardbeagle/livedit/internal/debug"
	"github.com/standardbeagle/livedit/internal/preview"
	"github.com/standardbeagle/livedit/internal/session"
	"github.com/standardbeagle/livedit/internal/tools"
)

const mcpInstructions = `Live page editing server. Pages are opened as sessions; each session keeps the
page document, the current selection, pending property edits and an undo history.

Available tools:
- session_list: List open sessions
- session: Create, open, stop and save sessions
- select_element: Select an element by path and read its editable properties
- update_element: Change a property of the selected element
- apply_changes: Apply or discard pending edits
- history: Undo, redo and inspect history
- page_content: Read the page HTML
- regenerate: Rewrite the selected element with the configured assistant
- pages: Saved pages and revisions

When the preview server is running, open /sessions/{id}/page in a browser to
see and click the same page.`

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	Long: `Run the MCP server over stdio. Unless --no-preview is given the preview server
runs alongside it, so sessions edited through tools can be watched and clicked
in a browser.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().Bool("no-preview", false, "Do not start the preview server")
	mcpCmd.Flags().String("addr", "", "Preview listen address (default from config)")

	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout belongs to the protocol
	if debug.GetLogFilePath() == "" {
		debug.SetOutput(os.Stderr)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.shutdown()

	if err := session.NewAutoStarter(cfg, a.manager).Start(ctx); err != nil {
		log.Warnf("autostart: %v", err)
	}

	if noPreview, _ := cmd.Flags().GetBool("no-preview"); !noPreview {
		srv := preview.NewServer(a.manager, cfg.Server.AllowedOrigins)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				log.Errorf("preview server: %v", err)
			}
		}()
	}

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    appName,
			Version: appVersion,
		},
		&mcp.ServerOptions{
			Instructions: mcpInstructions,
		},
	)
	tools.Register(server, tools.NewEditorTools(a.manager, a.pages, a.revisions))

	log.Infof("starting %s v%s (stdio)", appName, appVersion)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("mcp server: %w", err)
		}
	}
	return nil
}
