package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lazysync/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit int
}

// RunView is the CLI form of a recorded run.
type RunView struct {
	ID         int64      `json:"id"`
	UUID       string     `json:"uuid"`
	Command    string     `json:"command"`
	Arguments  []string   `json:"arguments"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ExitStatus *int       `json:"exit_status,omitempty"`
	Errors     int        `json:"errors"`
	Warnings   int        `json:"warnings"`
	Records    any        `json:"records,omitempty"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs or show one run",
		Long: `List the runs recorded in the registry database, newest first, or show
a single run including its error records.

Examples:
  lazysync runs --db ./lazysync.db
  lazysync runs --db ./lazysync.db --limit 5
  lazysync runs --db ./lazysync.db 3 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd, args)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to list (0 for all)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	out := env.out

	st, err := env.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			env.logger.Error("error closing database", "error", closeErr)
		}
	}()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return out.Fail(ErrCodeBadArgument, ExitCommandError, "invalid run id", err)
		}
		rec, err := st.ReadRun(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return out.Fail(ErrCodeNotFound, ExitFailure, fmt.Sprintf("run %d not found", id), nil)
		}
		if err != nil {
			return out.Fail(ErrCodeDatabase, ExitCommandError, "failed to read run", err)
		}
		view, err := runView(rec, true)
		if err != nil {
			return out.Fail(ErrCodeDatabase, ExitCommandError, "failed to decode run", err)
		}
		if out.Format == "json" {
			return out.Success(view)
		}
		printRun(out, view)
		return nil
	}

	recs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return out.Fail(ErrCodeDatabase, ExitCommandError, "failed to list runs", err)
	}
	views := make([]RunView, 0, len(recs))
	for _, rec := range recs {
		view, err := runView(rec, false)
		if err != nil {
			return out.Fail(ErrCodeDatabase, ExitCommandError, "failed to decode run", err)
		}
		views = append(views, view)
	}
	if out.Format == "json" {
		return out.Success(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(out.Writer, "No runs recorded")
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(out.Writer, "%d\t%s\t%s\t%s\terrors=%d warnings=%d\n",
			v.ID, v.StartedAt.Format(time.RFC3339), v.Command, runStatus(v), v.Errors, v.Warnings)
	}
	return nil
}

func runView(rec store.RunRecord, withRecords bool) (RunView, error) {
	view := RunView{
		ID:         rec.ID,
		UUID:       rec.UUID,
		Command:    rec.Command,
		Arguments:  rec.Arguments,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		ExitStatus: rec.ExitStatus,
		Errors:     rec.ErrorCount,
		Warnings:   rec.WarningCount,
	}
	if withRecords && rec.ErrorsJSON != "" {
		if err := json.Unmarshal([]byte(rec.ErrorsJSON), &view.Records); err != nil {
			return RunView{}, fmt.Errorf("run %d errors: %w", rec.ID, err)
		}
	}
	return view, nil
}

func runStatus(v RunView) string {
	if v.FinishedAt == nil {
		return "open"
	}
	if v.ExitStatus != nil {
		return fmt.Sprintf("exit=%d", *v.ExitStatus)
	}
	return "finished"
}

func printRun(out *OutputFormatter, v RunView) {
	fmt.Fprintf(out.Writer, "Run %d (%s)\n", v.ID, v.UUID)
	fmt.Fprintf(out.Writer, "  command:  %s %v\n", v.Command, v.Arguments)
	fmt.Fprintf(out.Writer, "  started:  %s\n", v.StartedAt.Format(time.RFC3339))
	if v.FinishedAt != nil {
		fmt.Fprintf(out.Writer, "  finished: %s\n", v.FinishedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(out.Writer, "  status:   %s\n", runStatus(v))
	fmt.Fprintf(out.Writer, "  errors:   %d\n", v.Errors)
	fmt.Fprintf(out.Writer, "  warnings: %d\n", v.Warnings)
	if v.Records != nil {
		data, _ := json.MarshalIndent(v.Records, "  ", "  ")
		fmt.Fprintf(out.Writer, "  records:  %s\n", data)
	}
}
