// Package clone wires the smart-v2 transport, the packfile decoder, the
// object store, and the working-tree writer together into a single
// `git clone`-equivalent operation. New code: the teacher repository has
// no network layer at all, so the sequencing here follows the
// fetch-then-checkout shape exercised by the gg-scm/gg-git packfile
// client fixtures in the retrieval pack.
package clone

import (
	"context"
	"errors"
	"strings"

	git "github.com/ashbourne/gitkit"
	"github.com/ashbourne/gitkit/checkout"
	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/packfile"
	"github.com/ashbourne/gitkit/transport"
	"golang.org/x/xerrors"
)

// ErrEmptyRepository is returned when the remote advertises no
// references at all to clone.
var ErrEmptyRepository = errors.New("remote repository has no references")

// ErrNoBranches is returned when the remote advertises references, but
// none of them are branches a HEAD could point at (e.g. tags only).
var ErrNoBranches = errors.New("remote repository has no branches")

// Clone fetches every reference and the objects they reach from the
// repository at url over smart-v2 HTTP, persists them into a freshly
// initialized repository at dir, and checks out the default branch into
// dir's working tree.
func Clone(ctx context.Context, url, dir string) (*git.Repository, error) {
	client := transport.NewClient(url)

	refs, err := client.ListRefs(ctx)
	if err != nil {
		return nil, xerrors.Errorf("could not list remote refs: %w", err)
	}
	if len(refs) == 0 {
		return nil, ErrEmptyRepository
	}

	wants := make([]ginternals.Oid, 0, len(refs))
	seen := make(map[ginternals.Oid]bool, len(refs))
	for _, ref := range refs {
		if seen[ref.Oid] {
			continue
		}
		seen[ref.Oid] = true
		wants = append(wants, ref.Oid)
	}

	packReader, err := client.Fetch(ctx, wants)
	if err != nil {
		return nil, xerrors.Errorf("could not fetch objects: %w", err)
	}

	r, err := git.InitRepository(dir)
	if err != nil {
		return nil, xerrors.Errorf("could not initialize %s: %w", dir, err)
	}

	if _, err := packfile.Unpack(packReader, r); err != nil {
		return nil, xerrors.Errorf("could not unpack fetched objects: %w", err)
	}

	for _, ref := range refs {
		if err := r.SetReference(ginternals.NewReference(ref.Name, ref.Oid)); err != nil {
			return nil, xerrors.Errorf("could not write reference %s: %w", ref.Name, err)
		}
	}

	defaultBranch, err := pickDefaultBranch(refs)
	if err != nil {
		return r, err
	}

	if err := r.SetReference(ginternals.NewSymbolicReference(ginternals.Head, defaultBranch)); err != nil {
		return r, xerrors.Errorf("could not set HEAD: %w", err)
	}

	if !r.IsBare() {
		commit, err := r.GetCommit(seenOid(refs, defaultBranch))
		if err != nil {
			return r, xerrors.Errorf("could not find default branch commit: %w", err)
		}
		tree, err := r.GetTree(commit.TreeID())
		if err != nil {
			return r, xerrors.Errorf("could not find default branch tree: %w", err)
		}
		if err := checkout.Tree(r.WorkTree(), r, tree, dir); err != nil {
			return r, xerrors.Errorf("could not check out working tree: %w", err)
		}
	}

	return r, nil
}

// pickDefaultBranch picks the branch HEAD should point at once
// references are written, in the absence of a negotiated symref
// capability telling us what the remote's HEAD actually pointed at:
// "main" and "master" are tried first since they're the overwhelmingly
// common default branch names, falling back to the first branch in
// advertised order.
func pickDefaultBranch(refs []transport.Ref) (string, error) {
	var firstBranch, master string
	for _, ref := range refs {
		if !strings.HasPrefix(ref.Name, "refs/heads/") {
			continue
		}
		if firstBranch == "" {
			firstBranch = ref.Name
		}
		if ref.Name == ginternals.LocalBranchFullName("main") {
			return ref.Name, nil
		}
		if ref.Name == ginternals.LocalBranchFullName(ginternals.Master) {
			master = ref.Name
		}
	}
	if master != "" {
		return master, nil
	}
	if firstBranch == "" {
		return "", ErrNoBranches
	}
	return firstBranch, nil
}

func seenOid(refs []transport.Ref, name string) ginternals.Oid {
	for _, ref := range refs {
		if ref.Name == name {
			return ref.Oid
		}
	}
	return ginternals.NullOid
}
