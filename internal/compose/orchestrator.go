package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vowstar/llm-git/internal/diff"
	"github.com/vowstar/llm-git/internal/patch"
)

// Stager mutates the repository index. Implementations must treat each call
// as a fast local operation: failures are immediate, not hangs.
type Stager interface {
	// AddFiles stages the listed paths wholesale (git add).
	AddFiles(paths []string) error
	// ApplyPatch applies unified-diff text to the index only.
	ApplyPatch(patchText string) error
	// ResetIndex unstages everything, leaving the worktree untouched.
	ResetIndex() error
}

// CommitCreator turns the currently staged index into a commit. It receives
// the group being committed (its metadata is the engine's opaque payload)
// and the hashes of commits created earlier in the same run.
type CommitCreator interface {
	CreateCommit(ctx context.Context, group ChangeGroup, prior []string) (hash string, err error)
}

// Options tune engine behavior per run.
type Options struct {
	// FallbackWholeFile retries a group with whole-file staging for any
	// path whose selectors cannot be resolved, instead of failing the run.
	FallbackWholeFile bool
}

// Engine sequences one compose run: parse the baseline once, order the
// groups, then stage and commit them one at a time. Group i+1 never begins
// until group i's commit exists.
type Engine struct {
	stager  Stager
	commits CommitCreator
	opts    Options
}

func NewEngine(stager Stager, commits CommitCreator, opts Options) *Engine {
	return &Engine{stager: stager, commits: commits, opts: opts}
}

// groupPlan is the fully resolved staging work for one group: everything is
// assembled before the first index mutation, so a bad selector can never
// leave the group half staged.
type groupPlan struct {
	addPaths  []string
	patchText string
}

// Run executes the compose state machine against baselineText. It returns
// one result per attempted group, in application order; a terminal failure
// is recorded on the failing group's result and returned. Completed groups
// stay committed: partial multi-group progress is preserved, not rolled
// back.
func (e *Engine) Run(ctx context.Context, baselineText string, groups []ChangeGroup) ([]GroupResult, error) {
	snap, err := diff.Parse(baselineText)
	if err != nil {
		return nil, fmt.Errorf("parse baseline diff: %w", err)
	}
	order, err := Order(groups)
	if err != nil {
		return nil, err
	}
	if err := e.stager.ResetIndex(); err != nil {
		return nil, fmt.Errorf("reset index: %w", err)
	}

	var (
		results []GroupResult
		hashes  []string
	)
	for i, groupIdx := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		group := groups[groupIdx]
		slog.Debug("staging group",
			slog.Int("position", i+1),
			slog.Int("group", groupIdx),
			slog.Int("files", len(group.Changes)),
		)

		plan, err := e.planGroup(snap, group)
		if err != nil {
			results = append(results, GroupResult{GroupIndex: groupIdx, Err: err})
			return results, fmt.Errorf("group %d: %w", groupIdx, err)
		}
		if err := e.applyPlan(plan); err != nil {
			results = append(results, GroupResult{GroupIndex: groupIdx, Err: err})
			return results, fmt.Errorf("group %d: %w", groupIdx, err)
		}

		hash, err := e.commits.CreateCommit(ctx, group, hashes)
		if err != nil {
			results = append(results, GroupResult{GroupIndex: groupIdx, Err: err})
			return results, fmt.Errorf("group %d: create commit: %w", groupIdx, err)
		}
		hashes = append(hashes, hash)
		results = append(results, GroupResult{GroupIndex: groupIdx, CommitHash: hash})
	}
	return results, nil
}

// planGroup resolves every FileChange of the group against the baseline and
// assembles the patch text. No index mutation happens here.
func (e *Engine) planGroup(snap *diff.Snapshot, group ChangeGroup) (*groupPlan, error) {
	plan := &groupPlan{}
	seenAdd := make(map[string]bool)
	addPath := func(path string) {
		if !seenAdd[path] {
			seenAdd[path] = true
			plan.addPaths = append(plan.addPaths, path)
		}
	}
	var patchText string
	for _, change := range group.Changes {
		fd, ok := snap.File(change.Path)
		if !ok {
			return nil, &patch.UnresolvedSelectorError{
				Path:     change.Path,
				Selector: patch.All(),
				Hint:     "path not present in baseline diff",
			}
		}
		if patch.IsWholeFile(change.Hunks) {
			addPath(change.Path)
			continue
		}
		text, err := e.planPartial(fd, change.Hunks)
		if err != nil {
			var unresolved *patch.UnresolvedSelectorError
			if e.opts.FallbackWholeFile && errors.As(err, &unresolved) {
				slog.Warn("selector unresolved, falling back to whole-file staging",
					slog.String("path", change.Path),
					slog.String("selector", unresolved.Selector.String()),
				)
				addPath(change.Path)
				continue
			}
			return nil, err
		}
		patchText += text
	}
	plan.patchText = patchText
	return plan, nil
}

func (e *Engine) planPartial(fd *diff.FileDiff, sels []patch.Selector) (string, error) {
	hunks, err := patch.Resolve(fd, sels)
	if err != nil {
		return "", err
	}
	// All hunks selected piecewise is still the whole file diff; emitting
	// it as a patch keeps the group's apply path uniform.
	return patch.Assemble(fd, hunks)
}

// applyPlan performs the group's index mutation. The patch is applied
// before the whole-file adds so a rejected patch leaves the index clean,
// and any partially staged state is reset on failure.
func (e *Engine) applyPlan(plan *groupPlan) error {
	if plan.patchText != "" {
		if err := e.stager.ApplyPatch(plan.patchText); err != nil {
			return err
		}
	}
	if len(plan.addPaths) > 0 {
		if err := e.stager.AddFiles(plan.addPaths); err != nil {
			if resetErr := e.stager.ResetIndex(); resetErr != nil {
				slog.Warn("reset after failed group apply", slog.Any("error", resetErr))
			}
			return err
		}
	}
	return nil
}
