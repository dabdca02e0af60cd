package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scoreframe/internal/deps"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration paths and external dependency availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Work directory: %s\n", cfg.Paths.WorkDir)
			fmt.Fprintf(out, "Log directory:  %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Journal:        %s\n", cfg.JournalPath())
			fmt.Fprintf(out, "API bind:       %s\n", cfg.Server.Bind)
			fmt.Fprintf(out, "Auth enabled:   %s\n", yesNo(cfg.Server.APIToken != ""))
			fmt.Fprintln(out)

			fmt.Fprintln(out, depsTable(deps.CheckBinaries(deps.ForConfig(cfg))))
			return nil
		},
	}
}
