// Package pakefile loads a YAML build script and registers its rules on an
// engine. It is the declarative front-end for the pake command: hosts that
// want programmatic rules use the engine API directly instead.
//
// Recipes are shell command strings. They run under $SHELL -c in the engine
// root and receive the build context as environment variables:
//
//	TARGET   filesystem path of the target (file rules only)
//	DEP1..n  one variable per dependency, in declaration order
//	DEPS     all dependency values, space-joined
//	MATCH1..n pattern capture groups (pattern rules only)
//
// File dependencies are passed as filesystem paths, virtual dependencies by
// name. A virtual rule's stdout becomes its result: parsed as JSON when it
// parses, kept as a trimmed string otherwise, null when empty.
package pakefile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pakebuild/pake"
	"github.com/pakebuild/pake/internal/shell"
)

// DefaultNames are the file names probed, in order, when no script path is
// given.
var DefaultNames = []string{"Pakefile.yaml", "Pakefile"}

// File is a parsed build script.
type File struct {
	Default string `yaml:"default,omitempty"`
	Rules   []Rule `yaml:"rules"`
}

// Rule is one entry under rules:. Exactly one of Target, Pattern, or Virtual
// selects the rule kind.
type Rule struct {
	Target  string   `yaml:"target,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"`
	Virtual string   `yaml:"virtual,omitempty"`
	Deps    []string `yaml:"deps,omitempty"`
	Always  bool     `yaml:"always,omitempty"`
	Run     string   `yaml:"run,omitempty"`
}

// Locate returns the path of the build script in dir, probing DefaultNames.
func Locate(dir string) (string, error) {
	for _, name := range DefaultNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no %s found in %s", strings.Join(DefaultNames, " or "), dir)
}

// Load parses and validates the build script at path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build script: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, r := range f.Rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("%s: rule %d: %w", path, i+1, err)
		}
	}
	return &f, nil
}

func validateRule(r Rule) error {
	kinds := 0
	for _, s := range []string{r.Target, r.Pattern, r.Virtual} {
		if s != "" {
			kinds++
		}
	}
	if kinds != 1 {
		return fmt.Errorf("exactly one of target, pattern, or virtual is required")
	}
	if r.Virtual == "" && r.Run == "" {
		return fmt.Errorf("file rules require run")
	}
	if r.Virtual == "" && r.Always {
		return fmt.Errorf("always applies only to virtual rules")
	}
	return nil
}

// Apply registers every rule in the script, plus the default alias when one
// is declared.
func Apply(e *pake.Engine, f *File) error {
	for i, r := range f.Rules {
		if err := applyRule(e, r); err != nil {
			return fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	if f.Default != "" {
		if err := e.Default(f.Default); err != nil {
			return fmt.Errorf("default: %w", err)
		}
	}
	return nil
}

func applyRule(e *pake.Engine, r Rule) error {
	switch {
	case r.Target != "":
		return e.RegisterExact(r.Target, r.Deps, fileRecipe(e, r.Run))
	case r.Pattern != "":
		return e.RegisterPattern(r.Pattern, r.Deps, patternRecipe(e, r.Run))
	case r.Run == "":
		// A virtual rule without a command is a group.
		deps := r.Deps
		if r.Always {
			deps = append([]string{pake.AlwaysName}, deps...)
		}
		return e.Group(r.Virtual, deps)
	case r.Always:
		return e.RegisterAlways(r.Virtual, r.Deps, virtualRecipe(e, r.Run))
	default:
		return e.RegisterVirtual(r.Virtual, r.Deps, virtualRecipe(e, r.Run))
	}
}

func fileRecipe(e *pake.Engine, command string) pake.FileRecipe {
	return func(ctx context.Context, path string, deps *pake.DepList) error {
		return shell.Shell(ctx, e.Root(), command, recipeEnv(e, path, deps, nil))
	}
}

func patternRecipe(e *pake.Engine, command string) pake.PatternRecipe {
	return func(ctx context.Context, path string, deps *pake.DepList, m *pake.Match) error {
		return shell.Shell(ctx, e.Root(), command, recipeEnv(e, path, deps, m))
	}
}

func virtualRecipe(e *pake.Engine, command string) pake.VirtualRecipe {
	return func(ctx context.Context, deps *pake.DepList) (any, error) {
		out, err := shell.ShellOutput(ctx, e.Root(), command, recipeEnv(e, "", deps, nil))
		if err != nil {
			return nil, err
		}
		return parseStdout(out), nil
	}
}

// parseStdout maps a virtual recipe's stdout to its result value.
func parseStdout(out []byte) any {
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		return v
	}
	return trimmed
}

// recipeEnv builds the environment a recipe command sees.
func recipeEnv(e *pake.Engine, target string, deps *pake.DepList, m *pake.Match) map[string]string {
	env := make(map[string]string)
	if target != "" {
		env["TARGET"] = target
	}

	values := make([]string, 0, deps.Len())
	for i := 0; i < deps.Len(); i++ {
		v := depEnvValue(e, deps.At(i).Name)
		env[fmt.Sprintf("DEP%d", i+1)] = v
		values = append(values, v)
	}
	env["DEPS"] = strings.Join(values, " ")

	if m != nil {
		for i, g := range m.Groups() {
			env[fmt.Sprintf("MATCH%d", i+1)] = g
		}
	}
	return env
}

// depEnvValue renders a dependency for the environment: file dependencies as
// filesystem paths, virtual ones by name.
func depEnvValue(e *pake.Engine, name string) string {
	if !strings.HasPrefix(name, "./") {
		return name
	}
	p, err := e.Path(name)
	if err != nil {
		return name
	}
	return p
}
