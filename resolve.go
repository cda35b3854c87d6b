package pake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"sort"
	"strings"

	"github.com/pakebuild/pake/internal/hash"
	"github.com/pakebuild/pake/internal/journal"
	"github.com/pakebuild/pake/internal/log"
	"github.com/pakebuild/pake/internal/statefile"
)

// run carries the per-invocation resolution state: the memo of targets
// already resolved, the DFS stack for cycle reporting, and the tokens that
// make "always" and Absent results fresh this run.
type run struct {
	e     *Engine
	store *statefile.Store

	memo    map[string]Result
	stack   []string
	inStack map[string]bool
	listed  map[string]bool
	rebuilt int

	jrnl  *journal.Journal
	runID string

	// tainted marks targets whose result must never compare equal across
	// runs: "always" itself and anything that depends on a tainted target,
	// at any depth.
	tainted map[string]bool

	// runToken is mixed into input signatures wherever a dependency resolved
	// to Absent or is tainted. It is unique per run, so a signature
	// containing it can never match a stored one.
	runToken string
}

// resolve returns the up-to-date result for a raw target name, building it
// first if needed. Each canonical target resolves at most once per run.
func (r *run) resolve(ctx context.Context, raw string) (Result, error) {
	rl, m, canonical, err := r.e.match(raw)
	if err != nil {
		return Result{}, err
	}

	if res, ok := r.memo[canonical]; ok {
		return res, nil
	}
	if r.inStack[canonical] {
		chain := append(append([]string(nil), r.stack...), canonical)
		return Result{}, &Error{Kind: ErrCycle, Target: canonical, Chain: chain}
	}
	r.stack = append(r.stack, canonical)
	r.inStack[canonical] = true
	defer func() {
		r.stack = r.stack[:len(r.stack)-1]
		delete(r.inStack, canonical)
	}()

	var res Result
	switch rl.kind {
	case kindAlways:
		res, err = r.resolveAlways(ctx, canonical)
	case kindFallback:
		res, err = r.resolveSource(ctx, canonical)
	default:
		res, err = r.resolveRule(ctx, rl, m, canonical)
	}
	if err != nil {
		return Result{}, err
	}

	r.memo[canonical] = res
	return res, nil
}

// resolveAlways produces the built-in "always" result: a sentinel fresh on
// every run. Taint makes the freshness transitive, so every target that
// reaches "always" through any chain of dependencies rebuilds each run.
func (r *run) resolveAlways(ctx context.Context, canonical string) (Result, error) {
	res, err := JSONResult("unique:" + r.runToken)
	if err != nil {
		return Result{}, err
	}
	r.tainted[canonical] = true
	r.store.Set(canonical, entryFromResult(res, "", nil))
	r.record(ctx, canonical, journal.ActionBuilt, "always")
	return res, nil
}

// resolveSource handles a file target no rule matches: the file must already
// exist, and its digest is the result. A missing file is a build failure.
func (r *run) resolveSource(ctx context.Context, canonical string) (Result, error) {
	path := targetPath(r.e.root, canonical)
	digest, err := hash.File(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, &Error{Kind: ErrMissingSource, Target: canonical}
	}
	if err != nil {
		return Result{}, &Error{Kind: ErrRecipeFailed, Target: canonical, Cause: err}
	}

	res := FileResult(digest)
	if prior, ok := r.store.Get(canonical); !ok || !res.Equal(resultFromEntry(prior)) {
		r.store.Set(canonical, entryFromResult(res, "", nil))
		r.record(ctx, canonical, journal.ActionHashed, "")
	}
	return res, nil
}

// resolveRule resolves a target with a registered rule: resolve its
// dependencies, compare the input signature (and for file targets the
// on-disk digest) against the stored entry, and run the recipe only when
// something changed.
func (r *run) resolveRule(ctx context.Context, rl *rule, m *Match, canonical string) (Result, error) {
	depNames := rl.depNames(m)
	deps := &DepList{}
	sigPairs := make([][2]string, 0, len(depNames))
	depsRaw := make(map[string]json.RawMessage, len(depNames))
	for _, name := range depNames {
		_, _, depCanonical, err := r.e.match(name)
		if err != nil {
			return Result{}, err
		}
		dres, err := r.resolve(ctx, name)
		if err != nil {
			return Result{}, err
		}
		deps.add(depCanonical, dres)
		if r.tainted[depCanonical] {
			r.tainted[canonical] = true
		}
		sigPairs = append(sigPairs, [2]string{depCanonical, r.encodeForSig(depCanonical, dres)})
		enc, _ := json.Marshal(dres.String())
		depsRaw[depCanonical] = enc
	}

	identity := rl.name
	sig := hash.InputSig(string(rl.kind), identity, sigPairs)

	isFile := rl.kind == kindExact || rl.kind == kindPattern
	path := ""
	if isFile {
		path = targetPath(r.e.root, canonical)
	}

	prior, ok := r.store.Get(canonical)
	reason := r.staleReason(canonical, prior, ok, sig, depsRaw, isFile, path)
	if reason == "" {
		res := resultFromEntry(prior)
		r.record(ctx, canonical, journal.ActionReused, "")
		log.WithTarget(canonical).Debug("up to date")
		return res, nil
	}

	if ctx.Err() != nil {
		return Result{}, &Error{Kind: ErrInterrupted, Target: canonical, Cause: ctx.Err()}
	}
	log.WithTarget(canonical).Info("building", "reason", reason)

	var res Result
	switch rl.kind {
	case kindVirtual:
		v, err := rl.virtual(ctx, deps)
		if err != nil {
			return Result{}, r.recipeError(ctx, canonical, err)
		}
		res, err = JSONResult(v)
		if err != nil {
			return Result{}, &Error{Kind: ErrInvalidResult, Target: canonical, Cause: err}
		}
	default:
		var err error
		if rl.kind == kindPattern {
			err = rl.pattern(ctx, path, deps, m)
		} else {
			err = rl.file(ctx, path, deps)
		}
		if err != nil {
			return Result{}, r.recipeError(ctx, canonical, err)
		}
		digest, err := hash.File(path)
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, &Error{Kind: ErrTargetNotProduced, Target: canonical}
		}
		if err != nil {
			return Result{}, &Error{Kind: ErrRecipeFailed, Target: canonical, Cause: err}
		}
		res = FileResult(digest)
	}

	r.rebuilt++
	r.store.Set(canonical, entryFromResult(res, sig, depsRaw))
	r.record(ctx, canonical, journal.ActionBuilt, reason)
	return res, nil
}

// staleReason explains why a target must rebuild, or "" when the stored
// result can be reused as is. When the input signature no longer matches, it
// names the dependencies that changed since the recorded build.
func (r *run) staleReason(canonical string, prior statefile.Entry, ok bool, sig string, cur map[string]json.RawMessage, isFile bool, path string) string {
	switch {
	case r.e.rebuild == RebuildAll:
		return "rebuild forced"
	case r.e.rebuild == RebuildListed && r.listed[canonical]:
		return "rebuild forced"
	case !ok:
		return "no recorded result"
	case prior.InputSig != sig:
		if changed := changedDeps(prior.Deps, cur); len(changed) > 0 {
			return "dependencies changed: " + strings.Join(changed, ", ")
		}
		return "inputs changed"
	}

	if isFile {
		if prior.Kind != statefile.KindFile {
			return "recorded result is not a file"
		}
		digest, err := hash.File(path)
		if errors.Is(err, fs.ErrNotExist) {
			return "output file is missing"
		}
		if err != nil || digest != resultFromEntry(prior).FileDigest() {
			return "output file changed on disk"
		}
	}
	return ""
}

// encodeForSig renders a dependency result for the input signature. Absent
// and tainted results encode through the per-run token, so any signature
// that includes one is unique to this run and the dependent always rebuilds.
func (r *run) encodeForSig(name string, res Result) string {
	if res.Kind() == KindAbsent || r.tainted[name] {
		return "fresh:" + r.runToken
	}
	return res.String()
}

// changedDeps names the dependencies whose recorded result differs from the
// current one, including dependencies added or removed since the recorded
// build. Sorted for stable messages.
func changedDeps(prior, cur map[string]json.RawMessage) []string {
	var out []string
	for name, enc := range cur {
		if p, ok := prior[name]; !ok || !bytes.Equal(p, enc) {
			out = append(out, name)
		}
	}
	for name := range prior {
		if _, ok := cur[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// recipeError classifies a recipe failure, preferring the interruption kind
// when the context was cancelled underneath the recipe.
func (r *run) recipeError(ctx context.Context, canonical string, err error) error {
	if ctx.Err() != nil {
		return &Error{Kind: ErrInterrupted, Target: canonical, Cause: err}
	}
	return &Error{Kind: ErrRecipeFailed, Target: canonical, Cause: err}
}

// record writes a target action to the journal, best effort.
func (r *run) record(ctx context.Context, target, action, detail string) {
	if r.jrnl == nil {
		return
	}
	if err := r.jrnl.RecordTarget(ctx, r.runID, target, action, detail); err != nil {
		r.e.logger.Warn("journal record failed", "target", target, "error", err)
	}
}

// entryFromResult converts an in-memory result to its stored form.
func entryFromResult(res Result, sig string, deps map[string]json.RawMessage) statefile.Entry {
	e := statefile.Entry{InputSig: sig, Deps: deps}
	switch res.Kind() {
	case KindFile:
		e.Kind = statefile.KindFile
		e.Value, _ = json.Marshal(res.FileDigest())
	case KindJSON:
		e.Kind = statefile.KindJSON
		e.Value = json.RawMessage(res.JSON())
	default:
		e.Kind = statefile.KindAbsent
	}
	return e
}

// resultFromEntry converts a stored entry back to a result. An entry that
// does not decode cleanly degrades to Absent, which forces a rebuild of
// anything that depends on it.
func resultFromEntry(e statefile.Entry) Result {
	switch e.Kind {
	case statefile.KindFile:
		var digest string
		if err := json.Unmarshal(e.Value, &digest); err != nil {
			return AbsentResult()
		}
		return FileResult(digest)
	case statefile.KindJSON:
		c, err := hash.NormalizeJSON(e.Value)
		if err != nil {
			return AbsentResult()
		}
		return jsonResultCanonical(c)
	default:
		return AbsentResult()
	}
}
