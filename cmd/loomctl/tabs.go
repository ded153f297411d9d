// Tabs command: list canvas containers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List canvas tabs",
	RunE:  runTabs,
}

func runTabs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tabs, err := st.Tabs(ctx)
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}

	if flagJSON {
		out, err := json.MarshalIndent(tabs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal tabs: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tNODES\tCREATED")
	fmt.Fprintln(w, "--\t-----\t-----\t-------")
	for _, t := range tabs {
		nodes, err := st.NodesByTab(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("count nodes: %w", err)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			shortID(t.ID), t.Title, len(nodes),
			time.UnixMilli(t.CreatedAt).Format("2006-01-02"))
	}
	w.Flush()
	fmt.Print(sb.String())
	fmt.Printf("Total: %d tab(s)\n", len(tabs))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
