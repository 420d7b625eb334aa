package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lazysync/internal/dispatch"
	"github.com/roach88/lazysync/internal/entity"
	"github.com/roach88/lazysync/internal/provider/memory"
	"github.com/roach88/lazysync/internal/rulespec"
	"github.com/roach88/lazysync/internal/serialize"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Dataset string
	Policy  string   // empty uses resolve.policy from config
	Rules   string   // optional rule file merged over the configured rules
	Purpose string   // "display" or "registry"
	Filters []string // Field=value pairs for list fetches
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <entity-type> [id]",
		Short: "Fetch and serialize entities from a dataset",
		Long: `Fetch one entity by id, or every entity of a type, from a dataset
provider. References are resolved according to the resolution policy and
the result is serialized with the configured rules.

Every fetch records a run in the registry database together with the
provider and entity types it touched.

Examples:
  lazysync fetch --dataset demo.yaml user 10
  lazysync fetch --dataset demo.yaml posts --filter Author=10
  lazysync fetch --dataset demo.yaml user 10 --policy do-not-resolve
  lazysync fetch --dataset demo.yaml user --rules display.rules --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Dataset, "dataset", "d", "", "YAML dataset to serve entities from (required)")
	_ = cmd.MarkFlagRequired("dataset")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "resolution policy (do-not-resolve|resolve-early|resolve-late)")
	cmd.Flags().StringVar(&opts.Rules, "rules", "", "rule file (.cue document or one expression per line)")
	cmd.Flags().StringVar(&opts.Purpose, "purpose", string(serialize.PurposeDisplay), "serialization purpose (display|registry)")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "list filter as Field=value (repeatable)")

	return cmd
}

func runFetch(opts *FetchOptions, cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	out := env.out

	t, ok := lookupType(args[0])
	if !ok {
		return out.Fail(ErrCodeUnknownType, ExitCommandError,
			fmt.Sprintf("unknown entity type %q", args[0]), nil)
	}

	policy := env.cfg.Policy()
	if opts.Policy != "" {
		if policy, err = entity.ParsePolicy(opts.Policy); err != nil {
			return out.Fail(ErrCodeBadArgument, ExitCommandError, "invalid policy", err)
		}
	}
	purpose, err := parsePurpose(opts.Purpose)
	if err != nil {
		return out.Fail(ErrCodeBadArgument, ExitCommandError, "invalid purpose", err)
	}
	filter, err := parseFilters(opts.Filters)
	if err != nil {
		return out.Fail(ErrCodeBadArgument, ExitCommandError, "invalid filter", err)
	}
	if filter != nil && len(args) == 2 {
		return out.Fail(ErrCodeBadArgument, ExitCommandError, "--filter cannot be combined with an id", nil)
	}

	rules := env.cfg.RuleSet()
	if opts.Rules != "" {
		extra, err := rulespec.LoadOptions(opts.Rules)
		if err != nil {
			return out.Fail(ErrCodeRules, ExitFailure, "failed to load rules", err)
		}
		rules = rules.With(extra...)
	}

	p, err := memory.Open(opts.Dataset)
	if err != nil {
		return out.Fail(ErrCodeDataset, ExitCommandError, "failed to load dataset", err)
	}
	out.VerboseLog("Loaded dataset %s", opts.Dataset)

	reg, err := env.openRegistry("fetch", args)
	if err != nil {
		return err
	}
	defer env.release(ctx, reg)

	d := dispatch.New(reg,
		dispatch.WithPolicy(env.cfg.Policy()),
		dispatch.WithLogger(env.logger),
		dispatch.WithQueueOptions(env.cfg.QueueOptions(env.logger)...),
	)
	if err := d.Register(ctx, p); err != nil {
		return out.Fail(ErrCodeDatabase, ExitCommandError, "failed to register provider", err)
	}
	if err := reg.CheckHeartbeat(ctx, p, env.cfg.Heartbeat.TTL); err != nil {
		return out.Fail(ErrCodeUnreachable, ExitFailure, "provider unreachable", err)
	}

	h := dispatch.For(d, p, t).WithPolicy(policy)
	var found []entity.Entity
	if len(args) == 2 {
		e, err := h.Get(ctx, parseID(args[1]))
		if err != nil {
			return out.Fail(ErrCodeFetchFailed, ExitFailure, "fetch failed", err)
		}
		if e == nil {
			return out.Fail(ErrCodeNotFound, ExitFailure,
				fmt.Sprintf("%s %s not found", t.Name, args[1]), nil)
		}
		found = append(found, e)
	} else {
		var fargs []any
		if filter != nil {
			fargs = append(fargs, filter)
		}
		if found, err = h.Collect(ctx, entity.OpGetList, fargs...); err != nil {
			return out.Fail(ErrCodeFetchFailed, ExitFailure, "fetch failed", err)
		}
	}
	out.VerboseLog("Fetched %d %s under %s", len(found), t.Plural, policy)

	docs := make([]any, 0, len(found))
	for _, e := range found {
		v, err := serialize.Serialize(e, serialize.ForEntity(rules, e, purpose))
		if err != nil {
			return out.Fail(ErrCodeSerialize, ExitFailure, "failed to serialize result", err)
		}
		docs = append(docs, v)
	}

	if err := reg.Close(ctx, ExitSuccess); err != nil {
		return out.Fail(ErrCodeDatabase, ExitCommandError, "failed to close run", err)
	}

	runID := reg.RunUUID()
	if len(args) == 2 {
		return out.Document(docs[0], runID)
	}
	if out.Format == "json" {
		return out.Document(docs, runID)
	}
	for _, doc := range docs {
		if err := out.Document(doc, runID); err != nil {
			return err
		}
	}
	return nil
}

// lookupType finds a dataset entity type by name or plural, ignoring case.
func lookupType(name string) (*entity.Type, bool) {
	for _, t := range memory.Types() {
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.Plural, name) {
			return t, true
		}
	}
	return nil, false
}

func parsePurpose(s string) (serialize.Purpose, error) {
	switch p := serialize.Purpose(s); p {
	case serialize.PurposeDisplay, serialize.PurposeRegistry:
		return p, nil
	}
	return "", fmt.Errorf("unknown purpose %q", s)
}
