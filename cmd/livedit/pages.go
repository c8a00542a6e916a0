package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/livedit/internal/store"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Inspect saved pages",
	Long: `Inspect pages saved by editing sessions.

Examples:
  livedit pages list
  livedit pages show landing
  livedit pages show landing --revision 3
  livedit pages revisions landing`,
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved pages",
	RunE:  runPagesList,
}

var pagesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a saved page",
	Args:  cobra.ExactArgs(1),
	RunE:  runPagesShow,
}

var pagesRevisionsCmd = &cobra.Command{
	Use:   "revisions <name>",
	Short: "List logged revisions of a page",
	Args:  cobra.ExactArgs(1),
	RunE:  runPagesRevisions,
}

func init() {
	pagesCmd.AddCommand(pagesListCmd)
	pagesCmd.AddCommand(pagesShowCmd)
	pagesCmd.AddCommand(pagesRevisionsCmd)

	pagesShowCmd.Flags().Int("revision", 0, "Print this logged revision instead of the latest")
	pagesRevisionsCmd.Flags().Int("limit", 20, "Maximum revisions to list")

	rootCmd.AddCommand(pagesCmd)
}

func openStore(cmd *cobra.Command) (*store.PageStore, *store.RevisionLog, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	pages := store.NewPageStore(cfg.StoreDir())
	path := revisionPath(cfg, pages)
	if path == "" {
		return pages, nil, nil
	}
	revs, err := store.OpenRevisionLog(path)
	if err != nil {
		return nil, nil, fmt.Errorf("revision log: %w", err)
	}
	return pages, revs, nil
}

func ago(t time.Time) string {
	return time.Since(t).Round(time.Second).String() + " ago"
}

func runPagesList(cmd *cobra.Command, args []string) error {
	pages, revs, err := openStore(cmd)
	if err != nil {
		return err
	}
	if revs != nil {
		defer revs.Close()
	}

	names, err := pages.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("No saved pages in %s\n", pages.Dir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tREVISION\tSIZE\tUPDATED")
	for _, name := range names {
		p, err := pages.Get(name)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t%v\n", name, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", p.Name, p.Revision, len(p.Content), ago(p.UpdatedAt))
	}
	return w.Flush()
}

func runPagesShow(cmd *cobra.Command, args []string) error {
	pages, revs, err := openStore(cmd)
	if err != nil {
		return err
	}
	if revs != nil {
		defer revs.Close()
	}

	rev, _ := cmd.Flags().GetInt("revision")
	if rev == 0 {
		p, err := pages.Get(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Print(p.Content)
		return nil
	}
	if revs == nil {
		return fmt.Errorf("revision log is disabled")
	}
	r, err := revs.Get(context.Background(), store.NormalizeName(args[0]), rev)
	if err != nil {
		return fmt.Errorf("%s revision %d: %w", args[0], rev, err)
	}
	fmt.Print(r.Content)
	return nil
}

func runPagesRevisions(cmd *cobra.Command, args []string) error {
	_, revs, err := openStore(cmd)
	if err != nil {
		return err
	}
	if revs == nil {
		return fmt.Errorf("revision log is disabled")
	}
	defer revs.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	list, err := revs.List(context.Background(), store.NormalizeName(args[0]), limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Printf("No revisions of %s\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REVISION\tSOURCE\tSAVED")
	for _, r := range list {
		source := r.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", strconv.Itoa(r.Revision), source, ago(r.CreatedAt))
	}
	return w.Flush()
}
