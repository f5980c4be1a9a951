package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vprompt/pkg/render"
)

func renderCmd(a *app) *cobra.Command {
	var (
		maxTokens     int
		tokenizerName string
		separator     string
		data          []string
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "render <tree>",
		Short: "Render a tree document to prompt text",
		Long: `Render a tree document to prompt text.

The tree is reconciled once, then every --data value is pumped into the
tree and it is reconciled again. When the prompt exceeds --max-tokens the
lowest-weighted chunks and leaves are dropped until it fits.

Examples:
  vprompt render prompt.yaml
  vprompt render prompt.yaml --max-tokens=512 --tokenizer=cl100k_base
  vprompt render prompt.yaml -d "build failed" -d "retrying" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rcfg, err := a.rendererConfig(cmd, maxTokens, tokenizerName, separator)
			if err != nil {
				return err
			}
			rec, _, err := a.open(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}

			prompt, err := render.NewRenderer(rcfg).RenderPass(cmd.Context(), rec)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(prompt)
			}
			fmt.Fprintln(out, prompt.Text)
			if len(prompt.Elided) > 0 {
				info(cmd, "%d tokens, %d leaves elided", prompt.Tokens, len(prompt.Elided))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxTokens, "max-tokens", "m", 0, "Token budget, 0 for unlimited (default from vprompt.json)")
	cmd.Flags().StringVarP(&tokenizerName, "tokenizer", "t", "", "Tokenizer: approx, cl100k_base or o200k_base (default from vprompt.json)")
	cmd.Flags().StringVar(&separator, "separator", "", "Text written between leaves (default from vprompt.json)")
	cmd.Flags().StringArrayVarP(&data, "data", "d", nil, "Value pumped into the tree before rendering (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the prompt with leaves and metadata as JSON")

	return cmd
}
