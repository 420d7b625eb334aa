package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lazysync/internal/store"
)

// NewProvidersCommand creates the providers command.
func NewProvidersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "providers",
		Short:         "List providers recorded in the registry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, cmd, func(st *store.Store, out *OutputFormatter) error {
				recs, err := st.ListProviders(commandContext(cmd))
				if err != nil {
					return out.Fail(ErrCodeDatabase, ExitCommandError, "failed to list providers", err)
				}
				if out.Format == "json" {
					return out.Success(recs)
				}
				if len(recs) == 0 {
					fmt.Fprintln(out.Writer, "No providers recorded")
				}
				for _, r := range recs {
					fmt.Fprintf(out.Writer, "%d\t%s\t%s\tlast seen %s\n",
						r.ID, r.Class, r.Hash, r.LastSeen.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

// NewTypesCommand creates the types command.
func NewTypesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "types",
		Short:         "List entity types recorded in the registry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, cmd, func(st *store.Store, out *OutputFormatter) error {
				recs, err := st.ListEntityTypes(commandContext(cmd))
				if err != nil {
					return out.Fail(ErrCodeDatabase, ExitCommandError, "failed to list entity types", err)
				}
				if out.Format == "json" {
					return out.Success(recs)
				}
				if len(recs) == 0 {
					fmt.Fprintln(out.Writer, "No entity types recorded")
				}
				for _, r := range recs {
					fmt.Fprintf(out.Writer, "%d\t%s\tlast seen %s\n",
						r.ID, r.Class, r.LastSeen.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func runCatalog(opts *RootOptions, cmd *cobra.Command, list func(*store.Store, *OutputFormatter) error) error {
	env, err := loadEnvironment(opts, cmd)
	if err != nil {
		return err
	}
	st, err := env.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			env.logger.Error("error closing database", "error", closeErr)
		}
	}()
	return list(st, env.out)
}
