package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"scadrec/internal/logging"
	"scadrec/internal/preflight"
	"scadrec/internal/recording"
	"scadrec/internal/services"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var sourcePath string
	var archivePath string
	var interval time.Duration
	var skipIdentical bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Snapshot a model file into a zip archive on every save",
		Long: `Poll the model file and append its content to the recording archive
whenever its modification time changes. Runs until interrupted.`,
		Example: "  scadrec record --in model.scad -r model.zip",
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
			if !cmd.Flags().Changed("poll-interval") {
				interval = cfg.PollInterval()
			}
			if interval <= 0 {
				return services.Wrap(services.ErrValidation, "record", "flags", "poll interval must be positive", nil)
			}
			if !cmd.Flags().Changed("skip-identical") {
				skipIdentical = cfg.Record.SkipIdentical
			}

			archive, err := recording.Open(archivePath)
			if err != nil {
				return err
			}
			if check := preflight.CheckDirectoryAccess("Recording directory", filepath.Dir(archive.Path())); !check.Passed {
				return services.Wrap(services.ErrValidation, "record", "preflight", check.Detail, nil)
			}
			unlock, err := archive.Lock()
			if err != nil {
				return services.Wrap(services.ErrValidation, "record", "lock", "another recorder is running", err)
			}
			defer func() { _ = unlock() }()

			logger = logger.With(logging.String(logging.FieldArchive, archive.Path()))
			recorder, err := recording.NewRecorder(sourcePath, archive, recording.Options{
				Interval:      interval,
				SkipIdentical: skipIdentical,
				Logger:        logging.NewComponentLogger(logger, "recorder"),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recording %s into %s every %s (Ctrl+C to stop)\n", recorder.Source(), archive.Path(), interval)
			runErr := recorder.Run(cmd.Context())
			fmt.Fprintf(out, "Stored %d snapshots\n", recorder.Stored())
			return runErr
		},
	}

	cmd.Flags().StringVar(&sourcePath, "in", "", "Model file to watch")
	cmd.Flags().StringVarP(&archivePath, "recording", "r", "", "Zip archive that receives snapshots")
	cmd.Flags().DurationVar(&interval, "poll-interval", 0, "Polling period (default from record.poll_interval_seconds)")
	cmd.Flags().BoolVar(&skipIdentical, "skip-identical", false, "Ignore saves whose content did not change")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("recording")
	return cmd
}
