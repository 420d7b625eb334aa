package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lazysync/internal/config"
	"github.com/roach88/lazysync/internal/entity"
	"github.com/roach88/lazysync/internal/registry"
	"github.com/roach88/lazysync/internal/store"
)

// Error codes reported in CLI responses.
const (
	ErrCodeConfig      = "E002" // Config file missing or invalid
	ErrCodeDataset     = "E003" // Dataset could not be loaded
	ErrCodeUnknownType = "E004" // No such entity type
	ErrCodeBadArgument = "E005" // Malformed id, filter or policy
	ErrCodeRules       = "E006" // Rule file could not be compiled
	ErrCodeUnreachable = "E007" // Backend did not answer its heartbeat
	ErrCodeFetchFailed = "E008" // Provider operation failed
	ErrCodeNotFound    = "E009" // Entity or run not found
	ErrCodeSerialize   = "E010" // Result could not be serialized
	ErrCodeDatabase    = "E011" // Registry database error
	ErrCodeInputFailed = "E012" // Input document could not be read
)

// environment is the per-invocation state shared by commands: the loaded
// config, a logger built from it, and the output formatter.
type environment struct {
	cfg    *config.Config
	logger *slog.Logger
	out    *OutputFormatter
}

// loadEnvironment reads the config named by the global flags. Flags win
// over the file and the environment.
func loadEnvironment(opts *RootOptions, cmd *cobra.Command) (*environment, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, out.Fail(ErrCodeConfig, ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return &environment{cfg: cfg, logger: logger, out: out}, nil
}

// openRegistry opens the registry database. The run row is not written
// until the first provider registers.
func (e *environment) openRegistry(command string, args []string) (*registry.Registry, error) {
	opts := append(e.cfg.RegistryOptions(e.logger), registry.WithCommand(command, args...))
	reg, err := registry.Open(e.cfg.Database.Path, e.cfg.StoreOptions(), opts...)
	if err != nil {
		return nil, e.out.Fail(ErrCodeDatabase, ExitCommandError, "failed to open database", err)
	}
	return reg, nil
}

// openStore opens the registry database for reading.
func (e *environment) openStore() (*store.Store, error) {
	st, err := store.Open(e.cfg.Database.Path, e.cfg.StoreOptions()...)
	if err != nil {
		return nil, e.out.Fail(ErrCodeDatabase, ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// release closes a run left open by an early return.
func (e *environment) release(ctx context.Context, reg *registry.Registry) {
	if err := reg.Release(ctx); err != nil {
		e.logger.Error("error closing registry", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// parseID reads integers as integer ids and anything else as a string id.
func parseID(s string) entity.ID {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return entity.IntID(n)
	}
	return entity.StringID(s)
}

// parseFilters turns "Field=value" pairs into a list filter. Integer
// values compare equal to integer ids.
func parseFilters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("filter %q: want field=value", pair)
		}
		filter[k] = v
	}
	return filter, nil
}
