// Query command: run a structured query specification.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loomcanvas/goloom/internal/query"
)

var (
	queryText  string
	queryTab   string
	queryLimit int
)

var queryCmd = &cobra.Command{
	Use:   "query [spec.json]",
	Short: "Run a structured query",
	Long: `Query executes a JSON query specification against the database.

The spec comes from a file argument, from stdin ("-"), or is assembled
from flags for quick text searches.

Example:
  loomctl query spec.json
  cat spec.json | loomctl query -
  loomctl query --text invoice --limit 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryText, "text", "", "full-text search instead of a spec file")
	queryCmd.Flags().StringVar(&queryTab, "tab", "", "restrict to one tab id")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum number of results (0 = no limit)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	spec, err := buildSpec(args)
	if err != nil {
		return err
	}

	results, err := queries.Execute(context.Background(), spec)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	if flagJSON {
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTITLE\tTAB")
	fmt.Fprintln(w, "--\t----\t-----\t---")
	for _, r := range results {
		title := r.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(r.NodeID), r.Type, title, shortID(r.TabID))
	}
	w.Flush()
	fmt.Print(sb.String())
	fmt.Printf("Total: %d match(es)\n", len(results))
	return nil
}

func buildSpec(args []string) (*query.Spec, error) {
	if len(args) == 1 {
		var raw []byte
		var err error
		if args[0] == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(args[0])
		}
		if err != nil {
			return nil, fmt.Errorf("read spec: %w", err)
		}
		spec := &query.Spec{}
		if err := json.Unmarshal(raw, spec); err != nil {
			return nil, fmt.Errorf("parse spec: %w", err)
		}
		return spec, nil
	}

	spec := &query.Spec{Scope: query.Scope{Type: "global"}, Limit: queryLimit}
	if queryTab != "" {
		spec.Scope = query.Scope{Type: "tab", TabID: queryTab}
	}
	if queryText != "" {
		spec.TextSearch = &query.TextSearch{Query: queryText}
	}
	return spec, nil
}
