package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/avoswald/folio/internal/services/shelf"
)

var addCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Upload documents to the library",
	Long: `Add uploads one or more PDF files. Each file appears on the shelf
immediately and is persisted in the background; a file that fails to
upload is rolled back. Files that are not PDFs are skipped.`,
	Example: `  folio add paper.pdf
  folio add thesis.pdf slides.pdf notes.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	files := make([]shelf.FileInput, 0, len(args))
	for _, arg := range args {
		data, err := os.ReadFile(arg)
		if err != nil {
			return fmt.Errorf("read %s: %w", arg, err)
		}
		name := filepath.Base(arg)
		files = append(files, shelf.FileInput{
			Name: name,
			Type: declaredType(name),
			Data: data,
		})
	}

	outcomes, err := appClient.Shelf.AddFiles(ctx, files)
	if err != nil {
		return err
	}

	// Wait for the background uploads so the command can report per
	// file. The shelf itself never blocks on them.
	if err := appClient.Shelf.Flush(ctx); err != nil {
		return fmt.Errorf("wait for uploads: %w", err)
	}

	var results []map[string]interface{}
	failures := 0
	for _, outcome := range outcomes {
		if outcome.Skipped {
			if !jsonOutput {
				printWarning("Skipped %s: %s", outcome.Name, outcome.Reason)
			}
			results = append(results, map[string]interface{}{
				"name": outcome.Name, "skipped": true, "reason": outcome.Reason,
			})
			continue
		}

		entry, err := appClient.Shelf.Entry(outcome.Entry.ID)
		if err != nil {
			// Rolled back: the placeholder is gone.
			failures++
			if !jsonOutput {
				printError("Failed %s: upload did not complete", outcome.Name)
			}
			results = append(results, map[string]interface{}{
				"name": outcome.Name, "uploaded": false,
			})
			continue
		}

		if !jsonOutput {
			printSuccess("Added %s (%s) id=%s", entry.DisplayName, formatBytes(entry.SizeBytes), entry.ID)
		}
		results = append(results, map[string]interface{}{
			"name": entry.DisplayName, "uploaded": true, "id": entry.ID,
			"size": entry.SizeBytes, "storage_path": entry.RemoteLocator,
		})
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": failures == 0, "files": results})
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d uploads failed", failures, len(files))
	}
	return nil
}

// declaredType plays the role of the file picker's declared MIME type.
// The shelf filters on the declaration, it never sniffs content.
func declaredType(name string) string {
	t := mime.TypeByExtension(filepath.Ext(name))
	if t == "" {
		return "application/octet-stream"
	}
	return t
}
