// Export and import commands: whole-database JSON backups.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the database as JSON",
	Long: `Export dumps every store into one portable JSON document, the same
format the browser build produces for backups. With no argument the
document goes to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the database contents from an export",
	Long: `Import clears every store and loads the given export document.
This is destructive; take an export first if in doubt.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runExport(cmd *cobra.Command, args []string) error {
	data, err := st.Export(context.Background())
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if len(args) == 0 {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Printf("Exported to %s (%d bytes)\n", args[0], len(data))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	if err := st.Import(context.Background(), data); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Println("Import complete")
	return nil
}
