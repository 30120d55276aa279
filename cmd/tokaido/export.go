package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/damgoweb/tokaido-orai/internal/backup"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "data",
	Short:   "Write sync data and settings to a backup document",
	Long: `Write the stored sync points, recording metadata and settings to a
JSON backup document named tokaido_settings_YYYY-MM-DD.json.

Use --out - to write the document to stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		now := time.Now()
		doc, err := backup.Export(cmd.Context(), e.store, now)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "-" {
			data, err := backup.Marshal(doc)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		if out == "" {
			out = e.cfg.ExportDir
		}

		path, err := backup.WriteFile(out, doc, now)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d sync points to %s\n", doc.SyncPointsCount, path)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Replace sync data and settings from a backup document",
	Long: `Read a backup document written by export and replace the stored sync
points with its contents. Settings are replaced only when the document
carries them. A malformed document changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		doc, err := backup.ImportFile(cmd.Context(), e.store, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d sync points from %s\n", len(doc.SyncData), args[0])
		if doc.Settings == nil {
			fmt.Println("Document has no settings; stored settings kept")
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "Output directory, or - for stdout (default: export_dir)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
