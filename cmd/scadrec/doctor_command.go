package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scadrec/internal/deps"
	"scadrec/internal/preflight"
	"scadrec/internal/services"
	"scadrec/internal/services/openscad"
)

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiGray  = "\x1b[90m"
)

type doctorReport struct {
	ConfigPath   string             `json:"config_path"`
	ConfigExists bool               `json:"config_exists"`
	Dependencies []deps.Status      `json:"dependencies"`
	Checks       []preflight.Result `json:"checks"`
	Healthy      bool               `json:"healthy"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var targets preflight.Targets
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and directory permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := doctorReport{
				ConfigPath:   ctx.configPath,
				ConfigExists: ctx.configExists,
				Dependencies: preflight.CheckSystemDeps(cfg),
				Checks:       preflight.RunAll(cmd.Context(), cfg, targets),
				Healthy:      true,
			}
			for _, status := range report.Dependencies {
				if status.Name == "OpenSCAD" && status.Available {
					client, err := openscad.New(status.Path, openscad.Settings{})
					if err == nil {
						report.Checks = append(report.Checks, preflight.CheckRenderer(cmd.Context(), client))
					}
				}
				if !status.Available && !status.Optional {
					report.Healthy = false
				}
			}
			for _, check := range report.Checks {
				if !check.Passed {
					report.Healthy = false
				}
			}

			if jsonOut {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printDoctorReport(cmd.OutOrStdout(), report)
			}
			if !report.Healthy {
				return services.Wrap(services.ErrConfiguration, "doctor", "check", "one or more checks failed", nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&targets.ArchivePath, "recording", "r", "", "Also check the directory of this archive")
	cmd.Flags().StringVar(&targets.ImageDir, "imgs", "", "Also check this image directory")
	cmd.Flags().StringVar(&targets.GIFPath, "gif", "", "Also check the directory of this GIF")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printDoctorReport(out io.Writer, report doctorReport) {
	colorize := shouldColorize(out)

	source := report.ConfigPath
	if !report.ConfigExists {
		source += " (not found, defaults)"
	}
	fmt.Fprintf(out, "Config: %s\n\n", source)

	depRows := make([][]string, 0, len(report.Dependencies))
	for _, status := range report.Dependencies {
		detail := status.Path
		if !status.Available {
			detail = status.Detail
		}
		depRows = append(depRows, []string{
			status.Name,
			status.Command,
			badge(status.Available, status.Optional, colorize),
			yesNo(!status.Optional),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		headers: []string{"Dependency", "Command", "Status", "Required", "Detail"},
		rows:    depRows,
	}))

	if len(report.Checks) > 0 {
		checkRows := make([][]string, 0, len(report.Checks))
		for _, check := range report.Checks {
			checkRows = append(checkRows, []string{check.Name, badge(check.Passed, false, colorize), strings.TrimSpace(check.Detail)})
		}
		fmt.Fprintln(out, renderTable(tableSpec{
			headers: []string{"Check", "Status", "Detail"},
			rows:    checkRows,
		}))
	}
}

func badge(ok, optional, colorize bool) string {
	label, color := "OK", ansiGreen
	switch {
	case !ok && optional:
		label, color = "MISSING", ansiGray
	case !ok:
		label, color = "FAIL", ansiRed
	}
	if !colorize {
		return label
	}
	return color + label + ansiReset
}
