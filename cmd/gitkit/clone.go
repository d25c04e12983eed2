package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ashbourne/gitkit/clone"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newCloneCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone URL [DIRECTORY]",
		Short: "clone a repository over smart HTTP",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 2 {
			dir = args[1]
		}
		return cloneCmd(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], dir)
	}

	return cmd
}

func cloneCmd(ctx context.Context, out io.Writer, cfg *globalFlags, url, dir string) error {
	if dir == "" {
		dir = defaultCloneDir(url)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.C.String(), dir)
	}

	fmt.Fprintf(out, "Cloning into '%s'...\n", dir)

	r, err := clone.Clone(ctx, url, dir)
	if err != nil {
		return xerrors.Errorf("could not clone %s: %w", url, err)
	}
	return r.Close()
}

// defaultCloneDir derives the target directory from the last path
// segment of url, the same way `git clone` does, stripping a trailing
// ".git" suffix.
func defaultCloneDir(url string) string {
	name := strings.TrimSuffix(strings.TrimRight(url, "/"), "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSuffix(name, ".git")
}
