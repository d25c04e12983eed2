package main

import (
	"github.com/ashbourne/gitkit/env"
	"github.com/ashbourne/gitkit/internal/pathutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// globalFlags carries the flags shared by every subcommand, the same
// way the teacher's cmd unifies -C/--git-dir/--work-tree across
// commands instead of redeclaring them everywhere.
type globalFlags struct {
	C        pflag.Value
	GitDir   string
	WorkTree string
	Bare     bool

	env *env.Env
}

func newRootCmd(cwd string, e *env.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gitkit",
		Short:         "a content-addressed version control data engine compatible with git",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg := &globalFlags{env: e}
	cfg.C = pathutil.NewDirPathFlagWithDefault(cwd)
	cmd.PersistentFlags().VarP(cfg.C, "C", "C", "Run as if gitkit was started in the provided path instead of the current working directory.")
	cmd.PersistentFlags().StringVar(&cfg.GitDir, "git-dir", "", "Path to the repository's .git directory.")
	cmd.PersistentFlags().StringVar(&cfg.WorkTree, "work-tree", "", "Path to the repository's working tree.")
	cmd.PersistentFlags().BoolVar(&cfg.Bare, "bare", false, "Treat the repository as bare.")

	// porcelain
	cmd.AddCommand(newInitCmd(cfg))
	cmd.AddCommand(newWriteTreeCmd(cfg))
	cmd.AddCommand(newCommitTreeCmd(cfg))
	cmd.AddCommand(newCloneCmd(cfg))

	// plumbing
	cmd.AddCommand(newCatFileCmd(cfg))
	cmd.AddCommand(newHashObjectCmd(cfg))
	cmd.AddCommand(newLsTreeCmd(cfg))

	return cmd
}
