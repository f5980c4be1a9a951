package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vprompt/pkg/snapshot"
)

func queryCmd(a *app) *cobra.Command {
	var (
		data   []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query <tree> <path>",
		Short: "Print the nodes of a tree matching a path",
		Long: `Print the nodes of a tree matching a path.

Paths use the snapshot notation: names separated by dots, ["key"] for
keyed children, [i] for positional children and [*] or * as wildcards.
Text leaves print their value; other nodes print their path.

Examples:
  vprompt query prompt.yaml 'f["log"].Log.Chunk[*].Text'
  vprompt query prompt.yaml 'f[*].*' --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := snapshot.Parse(args[1]); err != nil {
				return err
			}
			_, snap, err := a.open(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}

			nodes := snapshot.Query(snap, args[1])
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(nodes)
			}
			for _, n := range nodes {
				if n.IsLeaf() {
					fmt.Fprintln(out, n.Text())
				} else {
					fmt.Fprintln(out, n.Path)
				}
			}
			if len(nodes) == 0 {
				info(cmd, "no nodes match %s", args[1])
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&data, "data", "d", nil, "Value pumped into the tree before querying (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print matching nodes as JSON")

	return cmd
}
