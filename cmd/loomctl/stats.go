// Stats command: per-store record counts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loomcanvas/goloom/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts per store",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	counts := make(map[string]int, len(store.AllStores))
	for _, name := range store.AllStores {
		n, err := st.Count(ctx, name)
		if err != nil {
			return fmt.Errorf("count %s: %w", name, err)
		}
		counts[string(name)] = n
	}

	if flagJSON {
		out, err := json.MarshalIndent(counts, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal counts: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STORE\tRECORDS")
	fmt.Fprintln(w, "-----\t-------")
	for _, name := range store.AllStores {
		fmt.Fprintf(w, "%s\t%d\n", name, counts[string(name)])
	}
	w.Flush()
	fmt.Print(sb.String())
	if st.IsUsingMemoryFallback() {
		fmt.Println("Mode: in-memory fallback (another process holds the database)")
	}
	return nil
}
