package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"manifest/internal/infra"
	"manifest/internal/media"
)

// Pipeline is the media surface the commands call.
type Pipeline interface {
	Download(ctx context.Context, url, destPath string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractLastFrame(ctx context.Context, videoPath, imagePath string) error
	Normalize(ctx context.Context, input, output string, fps, width int) error
	MergeWithCrossfade(ctx context.Context, clip1, clip2, outPath string, xfadeSeconds float64, fps, width int) (media.MergeResult, error)
	Trim(ctx context.Context, input, output string, durationSeconds float64, fps, width int) error
}

func newRootCmd(p Pipeline, cfg *infra.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "mediactl",
		Short:        "Inspect and transform clips with the generation media pipeline.",
		SilenceUsage: true,
	}

	var fps, width int
	root.PersistentFlags().IntVar(&fps, "fps", cfg.FullFPS, "output frame rate")
	root.PersistentFlags().IntVar(&width, "width", cfg.FullWidth, "output width in pixels")

	root.AddCommand(
		&cobra.Command{
			Use:   "probe <video>",
			Short: "Print a clip's duration in seconds",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := p.ProbeDuration(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%.3f\n", d)
				return nil
			},
		},
		&cobra.Command{
			Use:   "fetch <url> <output>",
			Short: "Download a remote clip",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.Download(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "last-frame <video> <image>",
			Short: "Extract the final frame of a clip as an image",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.ExtractLastFrame(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "normalize <input> <output>",
			Short: "Re-encode a clip to the given frame rate and width",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.Normalize(cmd.Context(), args[0], args[1], fps, width)
			},
		},
		newMergeCmd(p, cfg, &fps, &width),
		newTrimCmd(p, cfg, &fps, &width),
	)
	return root
}

func newMergeCmd(p Pipeline, cfg *infra.Config, fps, width *int) *cobra.Command {
	var xfade float64
	cmd := &cobra.Command{
		Use:   "merge <clip1> <clip2> <output>",
		Short: "Join two clips with a crossfade, falling back to concatenation",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := p.MergeWithCrossfade(cmd.Context(), args[0], args[1], args[2], xfade, *fps, *width)
			if err != nil {
				return err
			}
			line := "strategy=" + string(res.Strategy)
			if res.FallbackReason != "" {
				line += " reason=" + strings.ReplaceAll(res.FallbackReason, "\n", " ")
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
	cmd.Flags().Float64Var(&xfade, "crossfade", cfg.CrossfadeSeconds, "crossfade length in seconds")
	return cmd
}

func newTrimCmd(p Pipeline, cfg *infra.Config, fps, width *int) *cobra.Command {
	var seconds float64
	cmd := &cobra.Command{
		Use:   "trim <input> <output>",
		Short: "Cut a clip down to its first seconds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds <= 0 {
				return fmt.Errorf("--seconds must be positive")
			}
			return p.Trim(cmd.Context(), args[0], args[1], seconds, *fps, *width)
		},
	}
	cmd.Flags().Float64Var(&seconds, "seconds", cfg.PreviewLengthSeconds, "length to keep")
	return cmd
}
