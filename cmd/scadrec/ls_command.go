package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"scadrec/internal/recording"
)

type lsOutput struct {
	Archive string            `json:"archive" yaml:"archive"`
	Count   int               `json:"count" yaml:"count"`
	Bytes   uint64            `json:"bytes" yaml:"bytes"`
	Entries []recording.Entry `json:"entries" yaml:"entries"`
}

func newLsCommand(ctx *commandContext) *cobra.Command {
	var archivePath string
	var formatFlag string

	cmd := &cobra.Command{
		Use:     "ls",
		Short:   "List the snapshots in a recording archive",
		Example: "  scadrec ls -r model.zip --format json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(formatFlag)
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

			result := lsOutput{Archive: archive.Path(), Count: len(entries), Entries: entries}
			for _, entry := range entries {
				result.Bytes += entry.Size
			}
			if result.Entries == nil {
				result.Entries = []recording.Entry{}
			}

			switch format {
			case formatJSON:
				return writeJSON(cmd, result)
			case formatYAML:
				return writeYAML(cmd, result)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "Archive %s is empty\n", archive.Path())
				return nil
			}
			fmt.Fprintln(out, renderSnapshotTable(result))
			return nil
		},
	}

	cmd.Flags().StringVarP(&archivePath, "recording", "r", "", "Zip archive to list")
	cmd.Flags().StringVar(&formatFlag, "format", formatTable, "Output format: table, json or yaml")
	_ = cmd.MarkFlagRequired("recording")
	return cmd
}

func renderSnapshotTable(result lsOutput) string {
	printer := message.NewPrinter(language.English)
	rows := make([][]string, 0, len(result.Entries))
	var compressed uint64
	for _, entry := range result.Entries {
		compressed += entry.CompressedSize
		rows = append(rows, []string{
			strconv.Itoa(entry.Index + 1),
			entry.Name,
			entry.RecordedAt.Local().Format(time.DateTime),
			humanize.Bytes(entry.Size),
			humanize.Bytes(entry.CompressedSize),
		})
	}
	return renderTable(tableSpec{
		headers: []string{"#", "Snapshot", "Recorded", "Size", "Compressed"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
		footer: []string{
			"",
			printer.Sprintf("%d snapshots", result.Count),
			humanize.Time(result.Entries[len(result.Entries)-1].RecordedAt),
			humanize.Bytes(result.Bytes),
			humanize.Bytes(compressed),
		},
	})
}
