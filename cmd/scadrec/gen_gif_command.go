package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scadrec/internal/animate"
	"scadrec/internal/config"
	"scadrec/internal/logging"
	"scadrec/internal/services"
	"scadrec/internal/services/ffmpeg"
)

func newGenGIFCommand(ctx *commandContext) *cobra.Command {
	var imgDir string
	var output string
	var encoderName string
	var ffmpegBinary string
	var frameDelay time.Duration
	var finalDelay time.Duration
	var width int
	var loopCount int
	var optimize bool

	cmd := &cobra.Command{
		Use:     "gen_gif",
		Aliases: []string{"gen-gif"},
		Short:   "Assemble a directory of images into an animated GIF",
		Long: `Combine the images in --imgs, sorted by filename, into one animated GIF.
Every frame shows for --frame-delay except the last, which holds for
--final-delay. The image directory is never modified.`,
		Example: "  scadrec gen_gif --imgs model_imgs --gif model.gif",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			settings := animate.Settings{
				FrameDelay: cfg.FrameDelay(),
				FinalDelay: cfg.FinalDelay(),
				Width:      cfg.GIF.Width,
				LoopCount:  cfg.GIF.LoopCount,
				Optimize:   cfg.GIF.Optimize,
			}
			if flags.Changed("frame-delay") {
				settings.FrameDelay = frameDelay
			}
			if flags.Changed("final-delay") {
				settings.FinalDelay = finalDelay
			}
			if flags.Changed("width") {
				settings.Width = width
			}
			if flags.Changed("loop") {
				settings.LoopCount = loopCount
			}
			if flags.Changed("optimize") {
				settings.Optimize = optimize
			}
			if !flags.Changed("encoder") {
				encoderName = cfg.GIF.Encoder
			}
			if !flags.Changed("ffmpeg-bin") {
				ffmpegBinary = cfg.GIF.FFmpegBinary
			}

			encoder, err := buildEncoder(encoderName, ffmpegBinary, logger)
			if err != nil {
				return err
			}
			assembler, err := animate.NewAssembler(encoder, settings, logging.NewComponentLogger(logger, "animate"))
			if err != nil {
				return err
			}
			result, err := assembler.Assemble(cmd.Context(), imgDir, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d frames, %s, %s encoder)\n",
				result.Output, result.Frames, humanize.Bytes(uint64(result.Bytes)), result.Encoder)
			return nil
		},
	}

	cmd.Flags().StringVar(&imgDir, "imgs", "", "Directory holding the frames")
	cmd.Flags().StringVar(&output, "gif", "", "Animated GIF to write")
	cmd.Flags().StringVar(&encoderName, "encoder", "", "GIF encoder: builtin or ffmpeg (default from gif.encoder)")
	cmd.Flags().StringVar(&ffmpegBinary, "ffmpeg-bin", "", "FFmpeg executable (default from gif.ffmpeg_binary)")
	cmd.Flags().DurationVar(&frameDelay, "frame-delay", 0, "Display time per frame (default from gif.frame_delay_ms)")
	cmd.Flags().DurationVar(&finalDelay, "final-delay", 0, "Display time of the last frame (default from gif.final_delay_ms)")
	cmd.Flags().IntVar(&width, "width", 0, "Scale frames to this width, keeping the aspect ratio")
	cmd.Flags().IntVar(&loopCount, "loop", 0, "Loop count: 0 forever, -1 play once")
	cmd.Flags().BoolVar(&optimize, "optimize", true, "Store only the changed region of each frame (builtin encoder)")
	_ = cmd.MarkFlagRequired("imgs")
	_ = cmd.MarkFlagRequired("gif")
	return cmd
}

func buildEncoder(name, ffmpegBinary string, logger *slog.Logger) (animate.Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", config.EncoderBuiltin:
		return animate.BuiltinEncoder{Logger: logging.NewComponentLogger(logger, "animate")}, nil
	case config.EncoderFFmpeg:
		client, err := ffmpeg.New(ffmpegBinary, ffmpeg.WithLogger(logging.NewComponentLogger(logger, "ffmpeg")))
		if err != nil {
			return nil, err
		}
		return animate.FFmpegEncoder{Client: client}, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "gen_gif", "encoder", fmt.Sprintf("unknown encoder %q (use builtin or ffmpeg)", name), nil)
	}
}
