package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vprompt/internal/errors"
)

func codesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes [code]",
		Short: "List error codes or explain one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, code := range errors.GetAllCodes() {
					t, _ := errors.GetTemplate(code)
					fmt.Fprintf(out, "%s  %-10s %s\n", code, t.Category, t.Message)
				}
				return nil
			}
			if _, ok := errors.GetTemplate(args[0]); !ok {
				return errors.New("VP190").WithDetail(fmt.Sprintf("There is no error code %s.", args[0]))
			}
			fmt.Fprint(out, errors.New(args[0]).Format())
			return nil
		},
	}
}
