package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scoreframe/internal/journal"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent conversion requests from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No conversion requests recorded")
				return nil
			}
			fmt.Fprintln(out, jobsTable(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list")
	cmd.AddCommand(newJobsShowCommand(ctx))
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <request-id>",
		Short: "Display one conversion request in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			entry, err := findEntry(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no conversion request matches %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), jobDetailTable(entry))
			return nil
		},
	}
}

// findEntry resolves an exact request id, falling back to a unique prefix
// match over recent entries so the short ids printed by `jobs` work here.
func findEntry(ctx context.Context, store *journal.Store, id string) (*journal.Entry, error) {
	entry, err := store.GetByRequestID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up job: %w", err)
	}
	if entry != nil {
		return entry, nil
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var match *journal.Entry
	for _, candidate := range entries {
		if strings.HasPrefix(candidate.RequestID, id) {
			if match != nil {
				return nil, fmt.Errorf("request id prefix %q is ambiguous", id)
			}
			match = candidate
		}
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
