package pake

import "context"

// Built-in target names.
const (
	// AlwaysName is the virtual target whose result is fresh on every run.
	// Any target that transitively depends on it is always rebuilt.
	AlwaysName = "always"

	// DefaultName is the virtual target built when no targets are given.
	// It is not predefined; register it with Default or Alias.
	DefaultName = "default"
)

// Alias registers a virtual rule named name whose sole dependency is
// target. The alias's result summarizes the dependency's result, so
// invalidation passes through.
func (e *Engine) Alias(name, target string) error {
	return e.Group(name, []string{target})
}

// Group registers a virtual rule named name that does nothing but reference
// a list of targets. Its result is an object mapping each declared
// dependency to its result payload, so dependents of the group rebuild iff
// any member's result changes.
func (e *Engine) Group(name string, targets []string) error {
	return e.RegisterVirtual(name, targets, groupRecipe)
}

func groupRecipe(_ context.Context, deps *DepList) (any, error) {
	out := make(map[string]any, deps.Len())
	for i := 0; i < deps.Len(); i++ {
		d := deps.At(i)
		out[d.Name] = d.Result.Value()
	}
	return out, nil
}

// Default marks target as the default: what gets built when the engine is
// invoked with no targets. Equivalent to Alias("default", target).
func (e *Engine) Default(target string) error {
	return e.Alias(DefaultName, target)
}

// RegisterAlways registers a virtual rule that runs on every invocation by
// prepending "always" to its dependencies.
func (e *Engine) RegisterAlways(name string, deps []string, recipe VirtualRecipe) error {
	return e.RegisterVirtual(name, append([]string{AlwaysName}, deps...), recipe)
}

// Unique returns a sentinel that is stable within this engine instance but
// distinct from every other run. Returning it from a virtual recipe makes
// dependents rebuild whenever that recipe has been re-run.
func (e *Engine) Unique() string {
	return e.uniqueToken
}
