package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vowstar/llm-git/internal/compose"
	"github.com/vowstar/llm-git/internal/config"
	"github.com/vowstar/llm-git/internal/diff"
	"github.com/vowstar/llm-git/internal/git"
	"github.com/vowstar/llm-git/internal/llm"
	"github.com/vowstar/llm-git/internal/render"
)

type composeFlags struct {
	maxCommits        int
	maxRounds         int
	preview           bool
	sign              bool
	fallbackWholeFile bool
}

var composeOpts composeFlags

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Split uncommitted changes into atomic commits",
	Long: `compose captures a snapshot of all uncommitted changes (staged,
unstaged and untracked), asks the model to group them into logically
independent commits, then stages and commits each group in dependency
order. Each group's commit message is drafted from the staged diff of
exactly that group.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompose(cmd.Context())
	},
}

func init() {
	composeCmd.Flags().IntVar(&composeOpts.maxCommits, "max-commits", 0, "maximum number of commits (0 = config default)")
	composeCmd.Flags().IntVar(&composeOpts.maxRounds, "max-rounds", 0, "maximum analysis retries (0 = config default)")
	composeCmd.Flags().BoolVar(&composeOpts.preview, "preview", false, "show the proposed grouping without committing")
	composeCmd.Flags().BoolVar(&composeOpts.sign, "sign", false, "GPG-sign created commits")
	composeCmd.Flags().BoolVar(&composeOpts.fallbackWholeFile, "fallback-whole-file", false, "stage the whole file when a hunk selector cannot be resolved")
	rootCmd.AddCommand(composeCmd)
}

func runCompose(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	maxCommits := composeOpts.maxCommits
	if maxCommits <= 0 {
		maxCommits = cfg.ComposeMaxCommits
	}
	maxRounds := composeOpts.maxRounds
	if maxRounds <= 0 {
		maxRounds = cfg.ComposeMaxRounds
	}

	repo, err := git.Open(flags.dir)
	if err != nil {
		return err
	}
	slog.Debug("repository opened", slog.String("root", repo.Root()))
	changes, err := repo.LocalChangesStatus()
	if err != nil {
		return err
	}
	if !changes.HasWorktree && !changes.HasStaged {
		return fmt.Errorf("nothing to commit: worktree and index are clean")
	}

	// The baseline is captured exactly once. Every selector and patch in
	// this run resolves against this text, never a re-read of the worktree.
	baseline, err := repo.BaselineDiff()
	if err != nil {
		return err
	}
	if strings.TrimSpace(baseline) == "" {
		return fmt.Errorf("nothing to commit: baseline diff is empty")
	}
	snap, err := diff.Parse(baseline)
	if err != nil {
		return err
	}

	client, err := llm.NewClient(cfg, slog.Default())
	if err != nil {
		return err
	}

	stat, err := repo.DiffStat()
	if err != nil {
		return err
	}

	groups, order, err := analyzeWithRetries(ctx, client, cfg, snap, formatStat(stat), maxCommits, maxRounds)
	if err != nil {
		return err
	}

	if overview, err := repo.HeadStatText(); err == nil && strings.TrimSpace(overview) != "" {
		fmt.Println(strings.TrimRight(overview, "\n"))
		fmt.Println()
	}
	renderer := render.New(os.Stdout, useColor())
	if err := renderer.GroupPreview(snap, groups, order); err != nil {
		return err
	}
	if composeOpts.preview {
		return nil
	}

	recent, err := repo.RecentSubjects(20)
	if err != nil {
		slog.Warn("reading recent commit subjects", slog.Any("error", err))
	}

	engine := compose.NewEngine(repo, &commitCreator{
		repo:   repo,
		client: client,
		sign:   composeOpts.sign || cfg.GPGSign,
		recent: recent,
	}, compose.Options{FallbackWholeFile: composeOpts.fallbackWholeFile})

	results, runErr := engine.Run(ctx, baseline, groups)
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "group %d failed: %v\n", res.GroupIndex, res.Err)
			continue
		}
		group := groups[res.GroupIndex]
		fmt.Printf("created commit %s (%s)\n", shortHash(res.CommitHash), strings.Join(group.Paths(), ", "))
	}
	if runErr != nil {
		return runErr
	}

	remaining, err := repo.BaselineDiff()
	if err == nil && strings.TrimSpace(remaining) != "" {
		slog.Info("uncommitted changes remain after compose run")
	}
	return nil
}

// analyzeWithRetries asks the model for a grouping and validates it
// against the baseline, feeding back up to maxRounds attempts.
func analyzeWithRetries(ctx context.Context, client *llm.Client, cfg *config.Config, snap *diff.Snapshot, stat string, maxCommits, maxRounds int) ([]compose.ChangeGroup, []int, error) {
	diffText := diff.Truncate(snap, diff.TruncateOptions{
		MaxBytes:              cfg.MaxDiffLength,
		ExcludedFiles:         cfg.ExcludedFiles,
		LowPriorityExtensions: cfg.LowPriorityExtensions,
	})

	var lastErr error
	for round := 1; round <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		groups, err := client.AnalyzeGroups(ctx, stat, diffText, maxCommits)
		if err != nil {
			lastErr = err
			slog.Warn("analysis round failed", slog.Int("round", round), slog.Any("error", err))
			continue
		}
		warnings, err := compose.Validate(groups, snap)
		for _, w := range warnings {
			slog.Warn("grouping warning", slog.String("warning", w))
		}
		if err != nil {
			lastErr = err
			slog.Warn("grouping rejected", slog.Int("round", round), slog.Any("error", err))
			continue
		}
		order, err := compose.Order(groups)
		if err != nil {
			lastErr = err
			slog.Warn("grouping has dependency cycle", slog.Int("round", round), slog.Any("error", err))
			continue
		}
		return groups, order, nil
	}
	return nil, nil, fmt.Errorf("no valid grouping after %d rounds: %w", maxRounds, lastErr)
}

// commitCreator drafts a message from the staged diff of the current
// group and creates the commit. It remembers the summaries of commits
// it created so later messages do not re-describe them.
type commitCreator struct {
	repo      *git.Repo
	client    *llm.Client
	sign      bool
	recent    []string
	summaries []string
}

func (c *commitCreator) CreateCommit(ctx context.Context, group compose.ChangeGroup, prior []string) (string, error) {
	staged, err := c.repo.StagedDiff()
	if err != nil {
		return "", err
	}
	stat, err := c.repo.StagedStatText()
	if err != nil {
		return "", err
	}
	msg, err := c.client.GenerateMessage(ctx, group, stat, staged, c.summaries, c.recent)
	if err != nil {
		return "", err
	}
	if err := c.repo.Commit(msg.Format(), c.sign); err != nil {
		return "", err
	}
	c.summaries = append(c.summaries, msg.Summary)
	return c.repo.HeadHash()
}

// formatStat renders a numstat summary the model can read alongside a
// possibly truncated diff.
func formatStat(stat *git.DiffStat) string {
	var b strings.Builder
	for _, fs := range stat.Files {
		if fs.Added < 0 {
			fmt.Fprintf(&b, "%s (binary)\n", fs.Path)
			continue
		}
		fmt.Fprintf(&b, "%s +%d -%d\n", fs.Path, fs.Added, fs.Removed)
	}
	if len(stat.Files) > 1 {
		fmt.Fprintf(&b, "total +%d -%d\n", stat.Total.Added, stat.Total.Removed)
	}
	return b.String()
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
