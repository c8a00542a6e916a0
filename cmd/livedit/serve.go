package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/livedit/internal/config"
	"github.com/standardbeagle/livedit/internal/preview"
	"github.com/standardbeagle/livedit/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the preview server",
	Long: `Run the preview server. Pages configured with autostart in .livedit.kdl, and
pages given with --page, are opened as sessions and served at
/sessions/{id}/page with the relay script injected.

A host editor connects to /sessions/{id}/host and exchanges protocol messages
over a websocket.

Examples:
  livedit serve
  livedit serve --addr 127.0.0.1:8080 --page landing=site/index.html
  livedit serve --origin https://editor.example.com`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, 127.0.0.1:7400)")
	serveCmd.Flags().StringArray("page", nil, "Page to open, as name=file (repeatable)")
	serveCmd.Flags().StringArray("origin", nil, "Origin allowed on the host websocket (repeatable, * for any)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if origins, _ := cmd.Flags().GetStringArray("origin"); len(origins) > 0 {
		cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origins...)
	}
	flagPages, _ := cmd.Flags().GetStringArray("page")
	extra, err := parsePageFlags(flagPages)
	if err != nil {
		return err
	}
	if cfg.Pages == nil {
		cfg.Pages = make(map[string]*config.PageConfig)
	}
	for name, p := range extra {
		cfg.Pages[name] = p
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.shutdown()

	starter := session.NewAutoStarter(cfg, a.manager)
	if err := starter.Start(ctx); err != nil {
		// Pages that failed are logged; the server still runs.
		log.Warnf("autostart: %v", err)
	}

	srv := preview.NewServer(a.manager, cfg.Server.AllowedOrigins)
	printSessions(a.manager, cfg.Server.Addr)
	log.Infof("%s v%s listening on %s", appName, appVersion, cfg.Server.Addr)

	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return fmt.Errorf("preview server: %w", err)
	}
	log.Infof("shutdown complete")
	return nil
}

func printSessions(m *session.Manager, addr string) {
	list := m.List()
	if len(list) == 0 {
		fmt.Fprintf(os.Stderr, "No pages open. POST HTML to http://%s/sessions to start one.\n", addr)
		return
	}
	for _, s := range list {
		fmt.Fprintf(os.Stderr, "  %-20s http://%s/sessions/%s/page\n", s.Name, addr, s.ID)
	}
}
