package rulespec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/roach88/lazysync/internal/serialize"
)

var ruleLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Marker", Pattern: `\[\]`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Dot", Pattern: `\.`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

type ruleLine struct {
	Remove  *removeExpr  `  "remove" @@`
	Replace *replaceExpr `| "replace" @@`
}

type removeExpr struct {
	Path rulePath `@@`
	Type string   `( "from" @Ident )?`
}

type replaceExpr struct {
	Path   rulePath `@@`
	Type   string   `( "in" @Ident )?`
	Rename string   `( "as" @Ident )?`
	WithID bool     `( @"with" "id" )?`
}

type rulePath struct {
	Segments []string `@(Ident | Marker) ( Dot @(Ident | Marker) )*`
}

func (p rulePath) String() string {
	return strings.Join(p.Segments, ".")
}

var ruleParser = participle.MustBuild[ruleLine](
	participle.Lexer(ruleLexer),
	participle.Elide("Whitespace"),
)

// ParseRule compiles one rule expression.
func ParseRule(expr string) (serialize.RuleOption, error) {
	return parseLine(expr, 0)
}

func parseLine(expr string, lineNo int) (serialize.RuleOption, error) {
	line, err := ruleParser.ParseString("", strings.TrimSpace(expr))
	if err != nil {
		return nil, expressionError(err, lineNo)
	}
	switch {
	case line.Remove != nil:
		var opts []serialize.RemoveOption
		if line.Remove.Type != "" {
			opts = append(opts, serialize.RemoveFrom(line.Remove.Type))
		}
		return serialize.Remove(line.Remove.Path.String(), opts...), nil
	case line.Replace != nil:
		var opts []serialize.ReplaceOption
		if line.Replace.Type != "" {
			opts = append(opts, serialize.ReplaceIn(line.Replace.Type))
		}
		if line.Replace.Rename != "" {
			opts = append(opts, serialize.Rename(line.Replace.Rename))
		}
		return serialize.Replace(line.Replace.Path.String(), opts...), nil
	}
	return nil, &CompileError{Field: "expression", Message: "empty rule", Line: lineNo}
}

func expressionError(err error, lineNo int) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		return &CompileError{
			Field:   "expression",
			Message: perr.Message(),
			Line:    max(lineNo, pos.Line),
			Column:  pos.Column,
		}
	}
	return fmt.Errorf("parse rule: %w", err)
}

// ParseRules compiles a rule file body, one expression per line.
func ParseRules(text string) ([]serialize.RuleOption, error) {
	var opts []serialize.RuleOption
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		opt, err := parseLine(line, i+1)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, nil
}
