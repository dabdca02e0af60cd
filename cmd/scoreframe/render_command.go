package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"scoreframe/internal/pipeline"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "render <score-file>",
		Short: "Convert a local MusicXML or MXL file into a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(false)
			if err != nil {
				return err
			}

			inputPath := args[0]
			payload, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("read score file: %w", err)
			}

			pipe := pipeline.New(cfg, logger, nil)
			result, err := pipe.Convert(cmd.Context(), pipeline.Request{
				Filename: filepath.Base(inputPath),
				Payload:  payload,
			})
			if err != nil {
				return err
			}

			target := outputPath
			if target == "" {
				target = result.OutputName
			}
			if err := os.WriteFile(target, result.Video, 0o644); err != nil {
				return fmt.Errorf("write video: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%d frames, %.2fs, %d notes) in %s\n",
				target, result.FrameCount, result.DurationSeconds, result.NoteCount, result.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output video path (defaults to a name derived from the score title)")
	return cmd
}
