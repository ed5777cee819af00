package cmd

import (
	"fmt"
	"mime"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loomchat/loom/internal/library"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage generated media",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generated media, newest first",
	RunE: func(*cobra.Command, []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}

		records := a.library.List()
		if len(records) == 0 {
			fmt.Println("The media library is empty.")
			return nil
		}

		for _, r := range records {
			fmt.Printf("%s  %-5s  %8s  %s  %q\n", r.ID, r.Kind, payloadSize(r), formatTime(r.CreatedAt), r.Prompt)
		}
		return nil
	},
}

var libraryExportCmd = &cobra.Command{
	Use:   "export <record-id> [path]",
	Short: "Write a media record's payload to a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid record id %q: %w", args[0], err)
		}

		rec, err := findRecord(a, id)
		if err != nil {
			return err
		}
		if rec.Payload == nil || len(rec.Payload.Data) == 0 {
			return fmt.Errorf("record %s has no payload", id)
		}

		path := exportPath(rec, args)
		if err := os.WriteFile(path, rec.Payload.Data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("Wrote %d bytes to %s.\n", len(rec.Payload.Data), path)
		return nil
	},
}

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Delete a media record",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid record id %q: %w", args[0], err)
		}

		if err := a.library.Delete(id); err != nil {
			return err
		}
		fmt.Printf("Deleted media record %s.\n", id)
		return nil
	},
}

func init() {
	libraryCmd.AddCommand(libraryListCmd, libraryExportCmd, libraryDeleteCmd)
	rootCmd.AddCommand(libraryCmd)
}

func findRecord(a *app, id uuid.UUID) (library.Record, error) {
	for _, r := range a.library.List() {
		if r.ID == id {
			return r, nil
		}
	}
	return library.Record{}, fmt.Errorf("media record %s not found", id)
}

// exportPath picks the output path: the explicit argument, or the record id
// plus an extension derived from the payload MIME type.
func exportPath(rec library.Record, args []string) string {
	if len(args) == 2 {
		return args[1]
	}

	ext := ".bin"
	if exts, err := mime.ExtensionsByType(rec.Payload.MIMEType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return rec.ID.String() + ext
}

func payloadSize(rec library.Record) string {
	if rec.Payload == nil {
		return "0 B"
	}
	n := len(rec.Payload.Data)
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
