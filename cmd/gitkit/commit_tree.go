package main

import (
	"fmt"
	"io"

	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/object"
	"github.com/ashbourne/gitkit/internal/errutil"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newCommitTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit-tree TREE",
		Short: "create a new commit object from a tree",
		Args:  cobra.ExactArgs(1),
	}

	parents := cmd.Flags().StringArrayP("parent", "p", nil, "Each -p indicates the id of a parent commit object.")
	message := cmd.Flags().StringP("message", "m", "", "A paragraph in the commit log message.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return commitTreeCmd(cmd.OutOrStdout(), cfg, args[0], *parents, *message)
	}

	return cmd
}

func commitTreeCmd(out io.Writer, cfg *globalFlags, treeIsh string, parents []string, message string) (err error) {
	if message == "" {
		return xerrors.New("commit message required, use -m")
	}

	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	treeOid, err := resolveObjectName(r, treeIsh)
	if err != nil {
		return err
	}
	tree, err := r.GetTree(treeOid)
	if err != nil {
		return xerrors.Errorf("could not get tree %s: %w", treeIsh, err)
	}

	parentIDs := make([]ginternals.Oid, 0, len(parents))
	for _, p := range parents {
		oid, err := resolveObjectName(r, p)
		if err != nil {
			return xerrors.Errorf("invalid parent %s: %w", p, err)
		}
		parentIDs = append(parentIDs, oid)
	}

	sig := commitSignature(cfg)

	c, err := r.NewDetachedCommit(tree, sig, &object.CommitOptions{
		Message:   message,
		ParentsID: parentIDs,
	})
	if err != nil {
		return xerrors.Errorf("could not create commit: %w", err)
	}

	fmt.Fprintln(out, c.ID().String())
	return nil
}

// commitSignature builds the author identity from the same GIT_AUTHOR_*
// environment variables real git reads, falling back to a generic
// identity when they aren't set.
func commitSignature(cfg *globalFlags) object.Signature {
	name := cfg.env.Get("GIT_AUTHOR_NAME")
	if name == "" {
		name = "gitkit"
	}
	email := cfg.env.Get("GIT_AUTHOR_EMAIL")
	if email == "" {
		email = "gitkit@localhost"
	}
	return object.NewSignature(name, email)
}
