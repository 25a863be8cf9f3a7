package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vowstar/llm-git/internal/buildinfo"
	"github.com/vowstar/llm-git/internal/git"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("llm-git %s\n", buildinfo.VersionWithRevision())
		if v, err := git.GitVersion(); err == nil {
			fmt.Printf("git %s\n", v)
		}
		fmt.Printf("minimum supported git %s\n", git.MinGitVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
