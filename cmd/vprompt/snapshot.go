package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vprompt/internal/errors"
	"github.com/vango-dev/vprompt/pkg/archive"
	"github.com/vango-dev/vprompt/pkg/snapshot"
)

func snapshotCmd(a *app) *cobra.Command {
	var (
		data      []string
		paths     bool
		doArchive bool
		labels    []string
	)

	cmd := &cobra.Command{
		Use:   "snapshot <tree>",
		Short: "Print the snapshot of a tree document",
		Long: `Print the snapshot of a tree document as JSON.

With --archive the snapshot is stored in the archive configured in
vprompt.json (an S3 bucket or a directory) and the record id is printed.

Examples:
  vprompt snapshot prompt.yaml
  vprompt snapshot prompt.yaml --paths
  vprompt snapshot prompt.yaml --archive --label env=staging`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.open(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if doArchive {
				rec := archive.NewRecord(snap)
				rec.Labels, err = parseLabels(labels)
				if err != nil {
					return err
				}
				rec.Labels["tree"] = filepath.Base(args[0])

				store, err := a.archiveStore(cmd.Context())
				if err != nil {
					return err
				}
				id, err := store.Save(cmd.Context(), rec)
				if err != nil {
					return errors.FromError(err, "VP180")
				}
				success(cmd, "Archived snapshot %s", id)
				fmt.Fprintln(out, id)
				return nil
			}

			if paths {
				for _, p := range snapshot.Paths(snap) {
					fmt.Fprintln(out, p)
				}
				return nil
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}

	cmd.Flags().StringArrayVarP(&data, "data", "d", nil, "Value pumped into the tree before the snapshot (repeatable)")
	cmd.Flags().BoolVar(&paths, "paths", false, "Print only the node paths")
	cmd.Flags().BoolVar(&doArchive, "archive", false, "Store the snapshot in the configured archive")
	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "Archive label as key=value (repeatable)")

	return cmd
}

func parseLabels(labels []string) (map[string]string, error) {
	out := make(map[string]string, len(labels)+1)
	for _, l := range labels {
		k, v, ok := strings.Cut(l, "=")
		if !ok || k == "" {
			return nil, errors.New("VP190").WithDetail(fmt.Sprintf("Label %q is not key=value.", l))
		}
		out[k] = v
	}
	return out, nil
}
