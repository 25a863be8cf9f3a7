package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vowstar/llm-git/internal/compose"
	"github.com/vowstar/llm-git/internal/diff"
	"github.com/vowstar/llm-git/internal/git"
	"github.com/vowstar/llm-git/internal/llm"
)

type messageFlags struct {
	commit bool
	sign   bool
}

var messageOpts messageFlags

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Draft a commit message for the staged changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMessage(cmd.Context())
	},
}

func init() {
	messageCmd.Flags().BoolVar(&messageOpts.commit, "commit", false, "create the commit with the drafted message")
	messageCmd.Flags().BoolVar(&messageOpts.sign, "sign", false, "GPG-sign the created commit")
	rootCmd.AddCommand(messageCmd)
}

func runMessage(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := git.Open(flags.dir)
	if err != nil {
		return err
	}
	staged, err := repo.StagedDiff()
	if err != nil {
		return err
	}
	if strings.TrimSpace(staged) == "" {
		return fmt.Errorf("nothing staged: use git add, or run llm-git compose")
	}

	snap, err := diff.Parse(staged)
	if err != nil {
		return err
	}
	diffText := diff.Truncate(snap, diff.TruncateOptions{
		MaxBytes:              cfg.MaxDiffLength,
		ExcludedFiles:         cfg.ExcludedFiles,
		LowPriorityExtensions: cfg.LowPriorityExtensions,
	})

	client, err := llm.NewClient(cfg, slog.Default())
	if err != nil {
		return err
	}
	stat, err := repo.StagedStatText()
	if err != nil {
		return err
	}
	recent, err := repo.RecentSubjects(20)
	if err != nil {
		slog.Warn("reading recent commit subjects", slog.Any("error", err))
	}
	msg, err := client.GenerateMessage(ctx, compose.ChangeGroup{}, stat, diffText, nil, recent)
	if err != nil {
		return err
	}

	if !messageOpts.commit {
		fmt.Println(msg.Format())
		return nil
	}
	if err := repo.Commit(msg.Format(), messageOpts.sign || cfg.GPGSign); err != nil {
		return err
	}
	hash, err := repo.HeadHash()
	if err != nil {
		return err
	}
	fmt.Printf("created commit %s\n", shortHash(hash))
	return nil
}
