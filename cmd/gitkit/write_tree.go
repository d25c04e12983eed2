package main

import (
	"fmt"
	"io"
	"path/filepath"

	git "github.com/ashbourne/gitkit"
	"github.com/ashbourne/gitkit/ginternals/object"
	"github.com/ashbourne/gitkit/internal/errutil"
	"github.com/ashbourne/gitkit/internal/gitpath"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newWriteTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write-tree",
		Short: "create a tree object from the current working tree",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return writeTreeCmd(cmd.OutOrStdout(), cfg)
	}

	return cmd
}

func writeTreeCmd(out io.Writer, cfg *globalFlags) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	if r.IsBare() {
		return xerrors.Errorf("write-tree needs a working tree")
	}

	tree, err := writeTreeDir(r, r.WorkTree(), r.Config.WorkTreePath)
	if err != nil {
		return xerrors.Errorf("could not build tree: %w", err)
	}

	fmt.Fprintln(out, tree.ID().String())
	return nil
}

// writeTreeDir recursively hashes dir's contents into tree objects,
// skipping the .git directory, the same way the tool this was
// distilled from walks the working directory instead of an index.
func writeTreeDir(r *git.Repository, fs afero.Fs, dir string) (*object.Tree, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, xerrors.Errorf("could not read %s: %w", dir, err)
	}

	tb := r.NewTreeBuilder()
	for _, e := range entries {
		if e.Name() == gitpath.DotGitPath {
			continue
		}
		full := filepath.Join(dir, e.Name())

		if e.IsDir() {
			subTree, err := writeTreeDir(r, fs, full)
			if err != nil {
				return nil, err
			}
			if err := tb.Insert(e.Name(), subTree.ID(), object.ModeDirectory); err != nil {
				return nil, xerrors.Errorf("could not insert %s: %w", e.Name(), err)
			}
			continue
		}

		content, err := afero.ReadFile(fs, full)
		if err != nil {
			return nil, xerrors.Errorf("could not read %s: %w", full, err)
		}
		blob, err := r.NewBlob(content)
		if err != nil {
			return nil, xerrors.Errorf("could not create blob for %s: %w", full, err)
		}
		if err := tb.Insert(e.Name(), blob.ID(), object.ModeFile); err != nil {
			return nil, xerrors.Errorf("could not insert %s: %w", e.Name(), err)
		}
	}

	return tb.Write()
}
