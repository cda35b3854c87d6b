package pake

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// FileRecipe builds a file target. The path argument is the filesystem
// location the recipe must produce, already joined with the engine root.
// On success the produced file is hashed and that digest becomes the
// target's result.
type FileRecipe func(ctx context.Context, path string, deps *DepList) error

// PatternRecipe builds a file target matched by a pattern rule.
type PatternRecipe func(ctx context.Context, path string, deps *DepList, m *Match) error

// VirtualRecipe builds a virtual target. The returned value must be
// JSON-encodable (nil permitted) and becomes the target's result; return
// NoResult to record an Absent result.
type VirtualRecipe func(ctx context.Context, deps *DepList) (any, error)

// Dep pairs a dependency's canonical name with its resolved result.
type Dep struct {
	Name   string
	Result Result
}

// DepList holds dependency results in declaration order.
type DepList struct {
	deps []Dep
}

func (d *DepList) add(name string, res Result) {
	d.deps = append(d.deps, Dep{Name: name, Result: res})
}

// Len reports the number of dependencies.
func (d *DepList) Len() int { return len(d.deps) }

// At returns the i-th dependency in declaration order.
func (d *DepList) At(i int) Dep { return d.deps[i] }

// Get looks up a dependency result by its canonical name.
func (d *DepList) Get(name string) (Result, bool) {
	for _, dep := range d.deps {
		if dep.Name == name {
			return dep.Result, true
		}
	}
	return Result{}, false
}

// Names returns the canonical dependency names in declaration order.
func (d *DepList) Names() []string {
	out := make([]string, len(d.deps))
	for i, dep := range d.deps {
		out[i] = dep.Name
	}
	return out
}

type ruleKind string

const (
	kindExact    ruleKind = "exact"
	kindPattern  ruleKind = "pattern"
	kindVirtual  ruleKind = "virtual"
	kindAlways   ruleKind = "always"
	kindFallback ruleKind = "fallback"
)

type rule struct {
	kind ruleKind
	name string // canonical target, virtual name, or pattern source
	re   *regexp.Regexp
	deps []string

	file    FileRecipe
	pattern PatternRecipe
	virtual VirtualRecipe
}

// RegisterExact registers a rule that builds exactly one file target.
func (e *Engine) RegisterExact(target string, deps []string, recipe FileRecipe) error {
	if e.frozen {
		return &Error{Kind: ErrRegistryFrozen, Target: target}
	}
	if recipe == nil {
		return fmt.Errorf("rule for %q has no recipe", target)
	}
	canonical, err := normalizePath(e.root, target)
	if err != nil {
		return err
	}
	if _, ok := e.exact[canonical]; ok {
		return &Error{Kind: ErrDuplicateRule, Target: canonical}
	}
	e.exact[canonical] = &rule{
		kind: kindExact,
		name: canonical,
		deps: append([]string(nil), deps...),
		file: recipe,
	}
	return nil
}

// RegisterPattern registers a rule that builds any file target whose
// canonical form (with or without the leading "./") matches the regex in
// full. Dependency templates may reference the pattern's capture groups
// with `\1`, `\2`, ….
func (e *Engine) RegisterPattern(pattern string, depTemplates []string, recipe PatternRecipe) error {
	if e.frozen {
		return &Error{Kind: ErrRegistryFrozen, Target: pattern}
	}
	if recipe == nil {
		return fmt.Errorf("pattern rule %q has no recipe", pattern)
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	if err := validateTemplates(depTemplates, re.NumSubexp()); err != nil {
		return fmt.Errorf("pattern %q: %w", pattern, err)
	}
	e.patterns = append(e.patterns, &rule{
		kind:    kindPattern,
		name:    pattern,
		re:      re,
		deps:    append([]string(nil), depTemplates...),
		pattern: recipe,
	})
	return nil
}

// RegisterVirtual registers a rule whose target is a name, not a file. If
// both a virtual target NAME and a file called NAME exist, "NAME" refers to
// the virtual target while "./NAME" refers to the file.
func (e *Engine) RegisterVirtual(name string, deps []string, recipe VirtualRecipe) error {
	if e.frozen {
		return &Error{Kind: ErrRegistryFrozen, Target: name}
	}
	if name == "" || strings.HasPrefix(name, "./") {
		return fmt.Errorf("invalid virtual target name %q", name)
	}
	if recipe == nil {
		return fmt.Errorf("virtual rule %q has no recipe", name)
	}
	if _, ok := e.virtuals[name]; ok {
		return &Error{Kind: ErrDuplicateRule, Target: name}
	}
	e.virtuals[name] = &rule{
		kind:    kindVirtual,
		name:    name,
		deps:    append([]string(nil), deps...),
		virtual: recipe,
	}
	return nil
}

// match resolves a raw target string to the unique rule that must build it.
// The raw name is probed against the virtual registry first; only when no
// virtual rule matches is it normalized as a path and matched against the
// file rules. Precedence: virtual > exact > pattern (registration order) >
// fallback.
func (e *Engine) match(raw string) (*rule, *Match, string, error) {
	if r, ok := e.virtuals[raw]; ok {
		return r, nil, raw, nil
	}

	canonical, err := normalizePath(e.root, raw)
	if err != nil {
		return nil, nil, "", err
	}

	if r, ok := e.exact[canonical]; ok {
		return r, nil, canonical, nil
	}

	for _, r := range e.patterns {
		if m := matchPattern(r, canonical); m != nil {
			return r, m, canonical, nil
		}
	}

	return e.fallback, nil, canonical, nil
}

// matchPattern applies a pattern to the canonical form, first with the
// leading "./", then without. Whichever matches supplies the groups.
func matchPattern(r *rule, canonical string) *Match {
	if g := r.re.FindStringSubmatch(canonical); g != nil {
		return &Match{target: canonical, groups: g}
	}
	trimmed := strings.TrimPrefix(canonical, "./")
	if g := r.re.FindStringSubmatch(trimmed); g != nil {
		return &Match{target: canonical, groups: g}
	}
	return nil
}

// depNames returns the rule's concrete dependency names for a given match,
// expanding pattern templates.
func (r *rule) depNames(m *Match) []string {
	if r.kind != kindPattern {
		return r.deps
	}
	out := make([]string, len(r.deps))
	for i, t := range r.deps {
		out[i] = expandTemplate(t, m)
	}
	return out
}
