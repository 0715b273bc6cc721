package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoPresign bool

var infoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show one document's details",
	Example: `  folio info 4f3c2a10-...
  folio info 4f3c2a10-... --presign`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolVar(&infoPresign, "presign", false,
		"Also emit a time-limited signed download URL")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := appClient.Shelf.Refresh(ctx); err != nil {
		return err
	}

	entry, err := appClient.Shelf.Entry(args[0])
	if err != nil {
		return fmt.Errorf("entry %s: %w", args[0], err)
	}

	var signed string
	if infoPresign && entry.RemoteLocator != "" {
		signed, err = appClient.Store.PresignGet(ctx, entry.RemoteLocator)
		if err != nil {
			return fmt.Errorf("presign %s: %w", entry.RemoteLocator, err)
		}
	}

	if jsonOutput {
		out := map[string]interface{}{"entry": entry}
		if signed != "" {
			out["signed_url"] = signed
		}
		printJSON(out)
		return nil
	}

	printInfo("ID:            %s", entry.ID)
	printInfo("Name:          %s", entry.DisplayName)
	printInfo("Size:          %s (%d bytes)", formatBytes(entry.SizeBytes), entry.SizeBytes)
	printInfo("Storage path:  %s", entry.RemoteLocator)
	printInfo("Public URL:    %s", entry.PublicURL)
	printInfo("Thumbnail:     %v", entry.HasThumbnail())
	if !entry.CreatedAt.IsZero() {
		printInfo("Added:         %s", entry.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if signed != "" {
		printInfo("Signed URL:    %s", signed)
	}
	return nil
}
