package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scadrec/internal/deps"
	"scadrec/internal/logging"
	"scadrec/internal/recording"
	"scadrec/internal/render"
	"scadrec/internal/services/openscad"
)

func newGenImgsCommand(ctx *commandContext) *cobra.Command {
	var archivePath string
	var imgDir string
	var tempFile string
	var binary string
	var extraArgs string
	var imgSize string
	var camera string
	var force bool

	cmd := &cobra.Command{
		Use:     "gen_imgs",
		Aliases: []string{"gen-imgs"},
		Short:   "Render every snapshot in an archive to an image",
		Long: `Render each archived snapshot with OpenSCAD, in archive order. Images are
named after their snapshot so the directory sorts in recording order. Images
that already exist are kept unless --force is given.`,
		Example: "  scadrec gen_imgs -r model.zip --imgs model_imgs",
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

			archive, err := recording.Open(archivePath)
			if err != nil {
				return err
			}
			if err := archive.RequireExisting(); err != nil {
				return err
			}
			entries, err := archive.Entries()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No snapshots in %s; nothing to do\n", archive.Path())
				return nil
			}

			settings := openscad.Settings{
				Args:    cfg.Render.OpenSCADArgs,
				ImgSize: cfg.Render.ImgSize,
				Camera:  cfg.Render.Camera,
				Timeout: cfg.RenderTimeout(),
			}
			if cmd.Flags().Changed("openscad-args") {
				settings.Args = extraArgs
			}
			if cmd.Flags().Changed("imgsize") {
				settings.ImgSize = strings.ReplaceAll(strings.TrimSpace(imgSize), "x", ",")
			}
			if cmd.Flags().Changed("camera") {
				settings.Camera = camera
			}
			if !cmd.Flags().Changed("openscad-bin") {
				binary = cfg.Render.OpenSCADBinary
			}
			if err := deps.Require(deps.OpenSCAD(binary)); err != nil {
				return err
			}

			logger = logger.With(logging.String(logging.FieldArchive, archive.Path()))
			client, err := openscad.New(binary, settings, openscad.WithLogger(logging.NewComponentLogger(logger, "openscad")))
			if err != nil {
				return err
			}
			generator, err := render.NewGenerator(client, render.Options{
				TempFile: tempFile,
				TempDir:  cfg.Render.TempDir,
				Force:    force,
				Logger:   logging.NewComponentLogger(logger, "render"),
				Progress: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			runCtx := logging.ContextWithAttrs(cmd.Context(), logging.String("image_dir", imgDir))
			result, err := generator.Generate(runCtx, archive, imgDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Rendered %d of %d snapshots into %s (%d already present)\n", result.Rendered, result.Total, imgDir, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&archivePath, "recording", "r", "", "Zip archive to render")
	cmd.Flags().StringVar(&imgDir, "imgs", "", "Directory that receives the images")
	cmd.Flags().StringVar(&tempFile, "tmp", "", "Scratch model path (default: hidden temp file in render.temp_dir or the working directory)")
	cmd.Flags().StringVar(&binary, "openscad-bin", "", "OpenSCAD executable (default from render.openscad_binary)")
	cmd.Flags().StringVar(&extraArgs, "openscad-args", "", "Arguments passed to OpenSCAD (default from render.openscad_args)")
	cmd.Flags().StringVar(&imgSize, "imgsize", "", "Image size as W,H or WxH")
	cmd.Flags().StringVar(&camera, "camera", "", "OpenSCAD --camera value")
	cmd.Flags().BoolVar(&force, "force", false, "Re-render images that already exist")
	_ = cmd.MarkFlagRequired("recording")
	_ = cmd.MarkFlagRequired("imgs")
	return cmd
}
