// Package checkout writes the objects of a git tree out to a working
// directory, the inverse of write-tree. New code: the teacher repository
// never materializes a working tree, only builds/reads objects, so this
// is grounded on backend/fsbackend's use of afero for every filesystem
// write and on ginternals/object/tree.go's entry modes.
package checkout

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// ErrSymlinksUnsupported is returned when a tree contains a symlink entry
// and the destination filesystem can't create one.
var ErrSymlinksUnsupported = errors.New("filesystem does not support symlinks")

// ObjectGetter is the subset of git.Repository checkout
// needs to resolve the blobs and subtrees a tree entry points at.
type ObjectGetter interface {
	GetObject(oid ginternals.Oid) (*object.Object, error)
}

// symlinker is implemented by filesystems (like afero's OsFs) that can
// create real symlinks.
type symlinker interface {
	SymlinkIfPossible(oldname, newname string) error
}

// Tree writes every entry of tree, recursively, under dir. dir is created
// if it doesn't already exist. Gitlink entries (submodules) are recorded
// as empty directories rather than recursed into - cloning a submodule's
// own history is out of scope.
func Tree(fs afero.Fs, r ObjectGetter, tree *object.Tree, dir string) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Errorf("could not create %s: %w", dir, err)
	}

	for _, entry := range tree.Entries() {
		if err := writeEntry(fs, r, entry, dir); err != nil {
			return xerrors.Errorf("could not write %s: %w", filepath.Join(dir, entry.Path), err)
		}
	}
	return nil
}

func writeEntry(fs afero.Fs, r ObjectGetter, entry object.TreeEntry, dir string) error {
	// entry.Path comes from a fetched tree, which may not be trustworthy
	// (e.g. a malicious remote during clone): reject an absolute path
	// outright, and make sure a relative one didn't escape dir via ".."
	// components (filepath.Join would otherwise silently clean it).
	if filepath.IsAbs(entry.Path) {
		return xerrors.Errorf("%s: %w", entry.Path, ginternals.ErrUnsafePath)
	}
	full := filepath.Join(dir, entry.Path)
	if full != dir && !strings.HasPrefix(full, dir+string(filepath.Separator)) {
		return xerrors.Errorf("%s: %w", entry.Path, ginternals.ErrUnsafePath)
	}

	switch entry.Mode {
	case object.ModeDirectory:
		o, err := r.GetObject(entry.ID)
		if err != nil {
			return xerrors.Errorf("could not get subtree: %w", err)
		}
		subTree, err := o.AsTree()
		if err != nil {
			return xerrors.Errorf("could not decode subtree: %w", err)
		}
		return Tree(fs, r, subTree, full)

	case object.ModeGitLink:
		return fs.MkdirAll(full, 0o755)

	case object.ModeSymLink:
		o, err := r.GetObject(entry.ID)
		if err != nil {
			return xerrors.Errorf("could not get symlink blob: %w", err)
		}
		sl, ok := fs.(symlinker)
		if !ok {
			return ErrSymlinksUnsupported
		}
		return sl.SymlinkIfPossible(string(o.Bytes()), full)

	default: // ModeFile, ModeExecutable
		o, err := r.GetObject(entry.ID)
		if err != nil {
			return xerrors.Errorf("could not get blob: %w", err)
		}
		perm := filePerm(entry.Mode)
		if err := afero.WriteFile(fs, full, o.Bytes(), perm); err != nil {
			return xerrors.Errorf("could not write file: %w", err)
		}
		return fs.Chmod(full, perm)
	}
}

func filePerm(mode object.TreeObjectMode) os.FileMode {
	if mode == object.ModeExecutable {
		return 0o755
	}
	return 0o644
}
