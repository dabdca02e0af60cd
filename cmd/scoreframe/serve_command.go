package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scoreframe/internal/deps"
	"scoreframe/internal/journal"
	"scoreframe/internal/logging"
	"scoreframe/internal/pipeline"
	"scoreframe/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noJournal bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(true)
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.ForConfig(cfg))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required binaries: %v", missing)
			}
			for _, status := range statuses {
				if !status.Available {
					logger.Warn("optional dependency unavailable",
						logging.String("name", status.Name),
						logging.String("detail", status.Detail),
					)
				}
			}

			var store *journal.Store
			if !noJournal {
				store, err = journal.Open(cfg)
				if err != nil {
					return fmt.Errorf("open journal: %w", err)
				}
				defer store.Close()
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipe := pipeline.New(cfg, logger, store)
			srv := server.New(cfg, logger, pipe, store, appVersion)
			return srv.Run(runCtx)
		},
	}

	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Disable the request journal")
	return cmd
}
