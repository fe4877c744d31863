package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ConfigResult is the validation outcome of one configuration file.
type ConfigResult struct {
	Path       string   `json:"path"`
	Valid      bool     `json:"valid"`
	Tracks     int      `json:"tracks,omitempty"`
	Processors int      `json:"processors,omitempty"`
	Events     int      `json:"events,omitempty"`
	Code       string   `json:"code,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool           `json:"valid"`
	Files []ConfigResult `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>...",
		Short: "Validate engine configuration files",
		Long: `Validate engine configuration files without starting the engine.

Each file is checked against the configuration schema, then its topology
is built: plugin uids must exist and track and processor names must be
unique.

Exit codes:
  0 - All files are valid
  1 - One or more files are invalid`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	result := ValidationResult{Valid: true, Files: make([]ConfigResult, 0, len(paths))}
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		fr := validateConfigFile(path)
		if !fr.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fr)
	}

	if formatter.JSON() {
		var cliErr *CLIError
		if !result.Valid {
			cliErr = &CLIError{Code: firstCode(result.Files), Message: "invalid configuration"}
		}
		if err := formatter.Response(result, cliErr); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, fr := range result.Files {
			if fr.Valid {
				fmt.Fprintf(w, "✓ %s: %d tracks, %d processors, %d events\n", fr.Path, fr.Tracks, fr.Processors, fr.Events)
				continue
			}
			fmt.Fprintf(w, "✗ %s [%s]\n", fr.Path, fr.Code)
			for _, e := range fr.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "invalid configuration")
	}
	return nil
}

func validateConfigFile(path string) ConfigResult {
	cfg, snap, err := loadConfig(path)
	if err != nil {
		fr := ConfigResult{Path: path, Code: ErrCodeGeneric, Errors: []string{err.Error()}}
		var le *LoadError
		if errors.As(err, &le) {
			fr.Code = le.Code
			fr.Errors = le.Errors
			if len(fr.Errors) == 0 {
				fr.Errors = []string{le.Message}
			}
		}
		return fr
	}
	return ConfigResult{
		Path:       path,
		Valid:      true,
		Tracks:     len(snap.Tracks()),
		Processors: len(snap.Processors()),
		Events:     len(cfg.Events),
	}
}

func firstCode(files []ConfigResult) string {
	for _, f := range files {
		if !f.Valid {
			return f.Code
		}
	}
	return ErrCodeGeneric
}
