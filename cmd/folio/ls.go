package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avoswald/folio/internal/models"
)

var lsCached bool

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the library",
	Long: `Ls shows every document in the library, oldest first. With
--cached the last fetched listing is shown without touching the
remote store.`,
	RunE: runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().BoolVar(&lsCached, "cached", false,
		"Use the local catalog cache instead of the remote listing")
}

func runLs(cmd *cobra.Command, args []string) error {
	var entries []*models.Entry

	if lsCached {
		catalog, err := appClient.Shelf.Cached()
		if err != nil {
			return fmt.Errorf("load cached catalog: %w", err)
		}
		entries = catalog.Entries
		if !jsonOutput {
			printInfo("Cached listing from %s", catalog.SavedAt.Local().Format("2006-01-02 15:04:05"))
		}
	} else {
		if err := appClient.Shelf.Refresh(cmd.Context()); err != nil {
			return err
		}
		entries = appClient.Shelf.Entries()
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"entries": entries, "count": len(entries)})
		return nil
	}

	if len(entries) == 0 {
		printInfo("The library is empty. Use 'folio add' to upload a document.")
		return nil
	}

	fmt.Printf("%-36s  %-40s  %10s  %-5s  %s\n", "ID", "NAME", "SIZE", "THUMB", "ADDED")
	for _, entry := range entries {
		name := entry.DisplayName
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		thumb := "-"
		if entry.HasThumbnail() {
			thumb = "yes"
		}
		added := "-"
		if !entry.CreatedAt.IsZero() {
			added = entry.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-36s  %-40s  %10s  %-5s  %s\n",
			entry.ID, name, formatBytes(entry.SizeBytes), thumb, added)
	}
	printInfo("\n%d document(s)", len(entries))
	return nil
}
