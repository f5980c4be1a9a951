package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vprompt/internal/errors"
	"github.com/vango-dev/vprompt/internal/templates"
)

func initCmd() *cobra.Command {
	var (
		template string
		cfg      templates.Config
		list     bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a starter vprompt.json and prompt.yaml",
		Long: `Create a new prompt project from a template.

The directory defaults to the current one. Existing files are never
overwritten.`,
		Example: `  vprompt init
  vprompt init agent-prompt --template agent
  vprompt init --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				for _, name := range templates.List() {
					t, _ := templates.Get(name)
					fmt.Fprintf(out, "%-8s %s\n", name, t.Description)
				}
				return nil
			}

			tmpl, err := templates.Get(template)
			if err != nil {
				return err
			}

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return errors.FromError(err, "VP190")
			}
			if cfg.ProjectName == "" {
				cfg.ProjectName = filepath.Base(abs)
			}

			if err := tmpl.Create(abs, cfg); err != nil {
				return err
			}
			for _, p := range tmpl.Paths() {
				fmt.Fprintln(out, filepath.Join(dir, p))
			}
			success(cmd, "Created %s project %s", tmpl.Name, cfg.ProjectName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "log", "Project template")
	cmd.Flags().BoolVar(&list, "list", false, "List available templates")
	cmd.Flags().StringVar(&cfg.ProjectName, "name", "", "Project name (defaults to the directory name)")
	cmd.Flags().StringVar(&cfg.Description, "description", "", "Root system text")
	cmd.Flags().IntVarP(&cfg.MaxTokens, "max-tokens", "m", 0, "Token budget (0 for unlimited)")
	cmd.Flags().StringVar(&cfg.Tokenizer, "tokenizer", "approx", "Tokenizer name")
	cmd.Flags().StringVar(&cfg.Bucket, "bucket", "", "S3 bucket for archived snapshots")

	return cmd
}
