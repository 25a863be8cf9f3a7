// Package cmd defines the llm-git command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vowstar/llm-git/internal/config"
)

type rootFlags struct {
	dir        string
	configPath string
	verbose    bool
	noColor    bool
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:   "llm-git",
	Short: "LLM-assisted git commit tooling",
	Long: `llm-git splits uncommitted changes into atomic commits and drafts
conventional commit messages using an OpenAI-compatible model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flags.verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.dir, "chdir", "C", ".", "run as if started in this directory")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func useColor() bool {
	if flags.noColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Execute runs the CLI and returns the process exit code. Interrupt
// cancels the command context; a group mid-stage finishes or fails, but
// commits already created stay.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "llm-git: %v\n", err)
		return 1
	}
	return 0
}
