package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentic-research/sleuth/internal/tree"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	searchFilenames []string
	searchRegex     []string
	searchExact     bool
	searchNoSubs    bool

	lookupOrphanOnly bool
)

func init() {
	searchCmd.Flags().StringSliceVarP(&searchFilenames, "name", "n", nil, "Filename to match (repeatable, case-insensitive)")
	searchCmd.Flags().StringSliceVarP(&searchRegex, "regex", "e", nil, "Regular expression to search titles for (repeatable)")
	searchCmd.Flags().BoolVar(&searchExact, "exact", false, "Match whole filenames instead of substrings")
	searchCmd.Flags().BoolVar(&searchNoSubs, "no-sub-items", false, "Do not list the contents of matching directories")

	lookupCmd.Flags().BoolVar(&lookupOrphanOnly, "orphans", false, "Only look inside orphan subtrees")

	rootCmd.AddCommand(printCmd, searchCmd, lookupCmd, mirrorsCmd)
}

var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the synced items tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTree()
		if err != nil {
			return err
		}
		return t.Print(cmd.OutOrStdout())
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search items by filename or regular expression",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(searchFilenames) == 0 && len(searchRegex) == 0 {
			return fmt.Errorf("at least one --name or --regex is required")
		}
		t, err := loadTree()
		if err != nil {
			return err
		}
		found, err := t.SearchItemByName(searchQuery())
		if err != nil {
			return err
		}
		log.Info("search finished", zap.Int("hits", len(found)))
		writeItems(cmd.OutOrStdout(), found)
		return nil
	},
}

func searchQuery() tree.SearchQuery {
	return tree.SearchQuery{
		Filenames:    searchFilenames,
		Regex:        searchRegex,
		Contains:     !searchExact,
		ListSubItems: !searchNoSubs,
	}
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <stable-id>",
	Short: "Find an item by stable id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTree()
		if err != nil {
			return err
		}
		it, ok := t.GetItemByID(args[0], lookupOrphanOnly)
		if !ok {
			return fmt.Errorf("item %s not found", args[0])
		}
		writeItems(cmd.OutOrStdout(), []*tree.Item{it})
		return nil
	},
}

var mirrorsCmd = &cobra.Command{
	Use:   "mirrors",
	Short: "Compare local and cloud views of mirrored items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTree()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, m := range t.MirroredItems() {
			status := "in sync"
			if diff := m.Differences(); len(diff) > 0 {
				status = "differs: " + strings.Join(diff, ", ")
			}
			fmt.Fprintf(w, "(%s) %s - %s\n", m.StableID, m.LocalFilename, status)
		}
		return nil
	},
}

// writeItems prints one line per item. Size is shown when it converts.
func writeItems(w io.Writer, items []*tree.Item) {
	for _, it := range items {
		size := "?"
		if mb, err := it.FileSizeMB(); err == nil {
			size = fmt.Sprintf("%.2f MB", mb)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.StableID(), it.Kind(), it.LocalTitle, size, it.TreePath)
	}
}
