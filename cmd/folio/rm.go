package main

import (
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Remove documents from the library",
	Long: `Rm takes documents off the shelf. The remote row and blob are
deleted in the background; a failed remote delete is logged, never
fatal.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRm,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := appClient.Shelf.Refresh(ctx); err != nil {
		return err
	}

	var removed []string
	for _, id := range args {
		if err := appClient.Shelf.Remove(ctx, id); err != nil {
			if jsonOutput {
				printJSON(map[string]interface{}{"success": false, "id": id, "error": err.Error()})
			} else {
				printError("Remove %s: %v", id, err)
			}
			return err
		}
		removed = append(removed, id)
		if !jsonOutput {
			printSuccess("Removed %s", id)
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "removed": removed})
	}
	return nil
}
