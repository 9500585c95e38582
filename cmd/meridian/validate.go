package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"tycho-hq/meridian/pkg/cli"
	"tycho-hq/meridian/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check a configuration file without starting the gateway.

All validation rules run and every field error is reported together, so a
config with several mistakes does not need one run per fix. Defaults and
environment overrides are applied first, the same way run applies them.

Examples:
  # Validate the default config file
  meridian validate

  # Validate a specific file
  meridian validate --config /etc/meridian/meridian.yaml

  # Machine-readable report
  meridian validate --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// validateReport is the validation result in its machine-readable shape.
type validateReport struct {
	Valid     bool         `json:"valid"`
	File      string       `json:"file"`
	Providers int          `json:"providers,omitempty"`
	Models    int          `json:"models,omitempty"`
	Aliases   int          `json:"aliases,omitempty"`
	Errors    []fieldIssue `json:"errors,omitempty"`
}

type fieldIssue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	report := buildReport(cfgFile)

	if validateFlags.format == string(cli.FormatJSON) {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, report); err != nil {
			return err
		}
		if !report.Valid {
			return fmt.Errorf("configuration invalid (%d errors)", len(report.Errors))
		}
		return nil
	}

	if report.Valid {
		fmt.Printf("✓ %s is valid\n", cfgFile)
		fmt.Printf("  providers: %d\n", report.Providers)
		fmt.Printf("  canonical models: %d\n", report.Models)
		fmt.Printf("  aliases: %d\n", report.Aliases)
		return nil
	}

	fmt.Printf("✗ %s is invalid (%d errors)\n", cfgFile, len(report.Errors))
	for _, issue := range report.Errors {
		if issue.Field != "" {
			fmt.Printf("  - %s: %s\n", issue.Field, issue.Message)
		} else {
			fmt.Printf("  - %s\n", issue.Message)
		}
	}
	return fmt.Errorf("configuration invalid")
}

// buildReport loads and validates one file, collecting every field error
// instead of stopping at the first.
func buildReport(path string) validateReport {
	report := validateReport{File: path, Valid: true}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err == nil {
		report.Providers = len(cfg.Providers)
		report.Models = len(cfg.CanonicalModels)
		report.Aliases = len(cfg.Aliases)
		return report
	}

	report.Valid = false
	var ve config.ValidationError
	if errors.As(err, &ve) {
		for _, fe := range ve.Errors {
			report.Errors = append(report.Errors, fieldIssue{Field: fe.Field, Message: fe.Message})
		}
	} else {
		report.Errors = append(report.Errors, fieldIssue{Message: err.Error()})
	}
	return report
}
