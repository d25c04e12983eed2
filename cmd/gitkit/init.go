package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	git "github.com/ashbourne/gitkit"
	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/config"
	"github.com/spf13/cobra"
)

type initCmdFlags struct {
	quiet bool
}

func newInitCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "create an empty git repository",
		Args:  cobra.MaximumNArgs(1),
	}

	flags := initCmdFlags{}
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Only print error and warning messages; all other output will be suppressed.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		directory := ""
		if len(args) > 0 {
			directory = args[0]
		}
		return initCmd(cmd.OutOrStdout(), cfg, flags, directory)
	}

	return cmd
}

func initCmd(out io.Writer, cfg *globalFlags, flags initCmdFlags, optionalDirectory string) error {
	workingDirectory := cfg.C.String()
	if optionalDirectory != "" {
		workingDirectory = optionalDirectory
	}

	p, err := config.LoadConfig(cfg.env, config.LoadConfigOptions{
		WorkingDirectory: workingDirectory,
		GitDirPath:       cfg.GitDir,
		WorkTreePath:     cfg.WorkTree,
		IsBare:           cfg.Bare,
		SkipGitDirLookUp: true,
	})
	if err != nil {
		return err
	}

	newRepo := true
	if _, err := os.Stat(filepath.Join(ginternals.DotGitPath(p), ginternals.Head)); err == nil {
		newRepo = false
	}

	r, err := git.InitRepositoryWithParams(p, git.InitOptions{
		IsBare: cfg.Bare,
	})
	if err != nil {
		if !errors.Is(err, git.ErrRepositoryExists) {
			return err
		}
		r, err = git.OpenRepositoryWithParams(p, git.OpenOptions{IsBare: cfg.Bare})
		if err != nil {
			return err
		}
	}

	if newRepo {
		fprintln(flags.quiet, out, "Initialized empty Git repository in", ginternals.DotGitPath(p))
	} else {
		fprintln(flags.quiet, out, "Reinitialized existing Git repository in", ginternals.DotGitPath(p))
	}

	return r.Close()
}
