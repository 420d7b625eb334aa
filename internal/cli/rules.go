package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lazysync/internal/rulespec"
)

// RulesCheckResult holds rule file validation results.
type RulesCheckResult struct {
	Valid  bool                       `json:"valid"`
	Errors []rulespec.ValidationError `json:"errors,omitempty"`
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with serialization rule files",
	}
	cmd.AddCommand(newRulesCheckCommand(rootOpts))
	return cmd
}

func newRulesCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a rule file without serializing anything",
		Long: `Validate a rule file and report every problem found.

Files ending in .cue are checked against the rule schema; any other file is
read as rule expressions, one per line, for example:

  remove Secret from User
  replace Team in User as TeamId`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesCheck(rootOpts, args[0], cmd)
		},
	}
}

func runRulesCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Checking %s", path)
	errs, err := rulespec.CheckFile(path)
	if err != nil {
		var cerr *rulespec.CompileError
		if errors.As(err, &cerr) {
			return formatter.Fail(ErrCodeRules, ExitFailure, "rule file does not compile", err)
		}
		return formatter.Fail(ErrCodeInputFailed, ExitCommandError, "failed to read rule file", err)
	}
	if len(errs) > 0 {
		return outputRuleErrors(formatter, errs)
	}

	if formatter.Format == "json" {
		return formatter.Success(RulesCheckResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Rules valid")
	return nil
}

func outputRuleErrors(formatter *OutputFormatter, errs []rulespec.ValidationError) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Data:   RulesCheckResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n  %s: %s\n\n", e.Field, e.Code, e.Message)
	}
	return failed
}
