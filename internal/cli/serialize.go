package cli

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lazysync/internal/rulespec"
	"github.com/roach88/lazysync/internal/serialize"
)

// SerializeOptions holds flags for the serialize command.
type SerializeOptions struct {
	*RootOptions
	Rules string
}

// NewSerializeCommand creates the serialize command.
func NewSerializeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SerializeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serialize <file>",
		Short: "Apply serialization rules to a YAML or JSON document",
		Long: `Serialize a YAML or JSON document with the configured rules and an
optional rule file. Use "-" to read standard input.

Useful for trying out rule files without a dataset.

Examples:
  lazysync serialize payload.json --rules display.rules
  cat payload.yaml | lazysync serialize - --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSerialize(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "rule file (.cue document or one expression per line)")

	return cmd
}

func runSerialize(opts *SerializeOptions, cmd *cobra.Command, path string) error {
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	out := env.out

	rules := env.cfg.RuleSet()
	if opts.Rules != "" {
		extra, err := rulespec.LoadOptions(opts.Rules)
		if err != nil {
			return out.Fail(ErrCodeRules, ExitFailure, "failed to load rules", err)
		}
		rules = rules.With(extra...)
	}

	doc, err := readDocument(cmd.InOrStdin(), path)
	if err != nil {
		return out.Fail(ErrCodeInputFailed, ExitCommandError, "failed to read document", err)
	}

	v, err := serialize.Serialize(doc, rules)
	if err != nil {
		return out.Fail(ErrCodeSerialize, ExitFailure, "failed to serialize document", err)
	}
	return out.Document(v, "")
}

// readDocument decodes a YAML document, which includes JSON. An empty
// input is a null document.
func readDocument(stdin io.Reader, path string) (any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return doc, nil
}
