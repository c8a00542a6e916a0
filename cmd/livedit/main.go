// Command livedit serves HTML pages with cross-frame element selection and
// live editing, and exposes the editing sessions as MCP tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/livedit/internal/debug"
)

const (
	appName    = "livedit"
	appVersion = "0.3.0"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Select and edit elements of a live page from a host frame",
	Long: `livedit serves HTML pages with an injected relay script so that elements can be
selected, edited inline and patched from a host editor, an MCP client, or both.

Examples:
  livedit init
  livedit serve
  livedit serve --page landing=site/index.html
  livedit mcp
  livedit pages list`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("debug")
		if verbose {
			debug.Enable()
		}
		if path, _ := cmd.Flags().GetString("log-file"); path != "" {
			if err := debug.SetLogFile(path); err != nil {
				return fmt.Errorf("log file: %w", err)
			}
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s v%s\n", appName, appVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (or set "+debug.EnvVar+")")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file in the user cache dir (livedit/logs)")
	rootCmd.PersistentFlags().StringP("dir", "C", "", "Project directory (default: current directory)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
