package cli

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/convoscript/internal/formbot"
	"github.com/roach88/convoscript/internal/formspec"
	"github.com/roach88/convoscript/internal/scenario"
)

// ValidationResult holds the validation outcome of one scenario file.
type ValidationResult struct {
	File   string   `json:"file"`
	Name   string   `json:"name,omitempty"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the scenario schema, compile the forms
they reference and decode their bot options. No bot is started and no
transcript is read.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	results := make([]ValidationResult, len(files))
	invalid := 0
	for i, f := range files {
		results[i] = validateScenario(f)
		if !results[i].Valid {
			invalid++
		}
		opts.logger().Debug("scenario validated", "path", f, "valid", results[i].Valid)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: results}
		if invalid > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_INVALID_SCENARIO", Message: fmt.Sprintf("%d invalid scenario file(s)", invalid)}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		rows := make([]table.Row, 0, len(results))
		for _, r := range results {
			mark := "✓"
			if !r.Valid {
				mark = "✗"
			}
			rows = append(rows, table.Row{mark + " " + r.File, r.Name})
			for _, e := range r.Errors {
				rows = append(rows, table.Row{"    " + e, ""})
			}
		}
		formatter.Table(table.Row{"File", "Scenario"}, rows)
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario file(s)", invalid))
	}
	return nil
}

func validateScenario(file string) ValidationResult {
	res := ValidationResult{File: file}

	s, err := scenario.Load(file)
	if err != nil {
		var ve *scenario.ValidationError
		if errors.As(err, &ve) {
			res.Errors = ve.Problems
		} else {
			res.Errors = []string{err.Error()}
		}
		return res
	}
	res.Name = s.Name

	if _, err := formspec.LoadFile(s.FormPath()); err != nil {
		res.Errors = append(res.Errors, "form: "+err.Error())
	}
	if _, err := s.Script(); err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	if _, err := formbot.DecodeOptions(s.Options); err != nil {
		res.Errors = append(res.Errors, "options: "+err.Error())
	}

	res.Valid = len(res.Errors) == 0
	return res
}
