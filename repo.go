// Package git contains the plumbing needed to read and write a
// repository stored using git's on-disk format.
package git

import (
	"errors"
	"path/filepath"

	"github.com/ashbourne/gitkit/backend"
	"github.com/ashbourne/gitkit/backend/fsbackend"
	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/config"
	"github.com/ashbourne/gitkit/ginternals/object"
	"github.com/ashbourne/gitkit/internal/gitpath"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// List of errors returned by the Repository struct
var (
	ErrRepositoryNotExist = errors.New("repository does not exist")
	ErrRepositoryExists   = errors.New("repository already exists")
	ErrTagNotFound        = errors.New("tag not found")
	ErrTagExists          = errors.New("tag already exists")
)

// Repository represents a git repository.
// A Git repository is the .git/ folder inside a project. It tracks all
// the changes made to the files of a project, building a history over
// time.
// https://blog.axosoft.com/learning-git-repository/
type Repository struct {
	// Config contains all the paths and settings used by this repository
	Config *config.Config

	dotGit   backend.Backend
	workTree afero.Fs
}

// InitOptions contains all the optional data used to initialize a
// repository
type InitOptions struct {
	// IsBare represents whether a bare repository will be created or not
	IsBare bool
	// GitBackend represents the underlying backend to use to init the
	// repository and interact with the odb.
	// By default the filesystem will be used
	GitBackend backend.Backend
	// WorkingTreeBackend represents the underlying backend to use to
	// interact with the working tree.
	// By default the filesystem will be used.
	// Setting this is useless if IsBare is set to true
	WorkingTreeBackend afero.Fs
}

// InitRepository initializes a new git repository by creating the .git
// directory in the given path, which is where almost everything that
// Git stores and manipulates is located.
// https://git-scm.com/book/en/v2/Git-Internals-Plumbing-and-Porcelain#ch10-git-internals
func InitRepository(repoPath string) (*Repository, error) {
	return InitRepositoryWithOptions(repoPath, InitOptions{})
}

// InitRepositoryWithOptions initializes a new git repository the same
// way InitRepository does, but lets the caller customize the backends
// used and whether the repo should be bare.
func InitRepositoryWithOptions(repoPath string, opts InitOptions) (*Repository, error) {
	cfgOpts := config.LoadConfigOptions{
		WorkingDirectory: repoPath,
		IsBare:           opts.IsBare,
		SkipGitDirLookUp: true,
	}
	if opts.IsBare {
		cfgOpts.GitDirPath = repoPath
	} else {
		cfgOpts.GitDirPath = filepath.Join(repoPath, gitpath.DotGitPath)
		cfgOpts.WorkTreePath = repoPath
	}

	cfg, err := config.LoadConfigSkipEnv(cfgOpts)
	if err != nil {
		return nil, xerrors.Errorf("could not build config: %w", err)
	}
	return InitRepositoryWithParams(cfg, opts)
}

// InitRepositoryWithParams initializes a new git repository using an
// already built Config, giving full control over every path used by
// the repository.
func InitRepositoryWithParams(cfg *config.Config, opts InitOptions) (*Repository, error) {
	r := &Repository{Config: cfg}

	r.dotGit = opts.GitBackend
	if r.dotGit == nil {
		b, err := fsbackend.New(ginternals.DotGitPath(cfg))
		if err != nil {
			return nil, xerrors.Errorf("could not create backend: %w", err)
		}
		r.dotGit = b
	}

	if cfg.WorkTreePath != "" {
		r.workTree = opts.WorkingTreeBackend
		if r.workTree == nil {
			r.workTree = afero.NewOsFs()
		}
	}

	if err := r.dotGit.Init(); err != nil {
		return nil, xerrors.Errorf("could not init repository: %w", err)
	}

	ref := ginternals.NewSymbolicReference(ginternals.Head, ginternals.LocalBranchFullName(ginternals.Master))
	if err := r.dotGit.WriteReferenceSafe(ref); err != nil {
		if errors.Is(err, ginternals.ErrRefExists) {
			return nil, ErrRepositoryExists
		}
		return nil, xerrors.Errorf("could not write HEAD: %w", err)
	}

	return r, nil
}

// OpenOptions contains all the optional data used to open a
// repository
type OpenOptions struct {
	// IsBare represents whether the repository is bare or not
	IsBare bool
	// GitBackend represents the underlying backend to use to interact
	// with the odb. By default the filesystem will be used
	GitBackend backend.Backend
	// WorkingTreeBackend represents the underlying backend to use to
	// interact with the working tree. By default the filesystem will
	// be used. Setting this is useless if IsBare is set to true
	WorkingTreeBackend afero.Fs
}

// OpenRepository loads an existing git repository by reading its
// config file, and returns a Repository instance
func OpenRepository(repoPath string) (*Repository, error) {
	return OpenRepositoryWithOptions(repoPath, OpenOptions{})
}

// OpenRepositoryWithOptions loads an existing git repository the same
// way OpenRepository does, but lets the caller customize the backends
// used and whether the repo should be bare.
func OpenRepositoryWithOptions(repoPath string, opts OpenOptions) (*Repository, error) {
	cfgOpts := config.LoadConfigOptions{
		WorkingDirectory: repoPath,
		IsBare:           opts.IsBare,
		SkipGitDirLookUp: true,
	}
	if opts.IsBare {
		cfgOpts.GitDirPath = repoPath
	} else {
		cfgOpts.GitDirPath = filepath.Join(repoPath, gitpath.DotGitPath)
		cfgOpts.WorkTreePath = repoPath
	}

	cfg, err := config.LoadConfigSkipEnv(cfgOpts)
	if err != nil {
		return nil, xerrors.Errorf("could not build config: %w", err)
	}
	return OpenRepositoryWithParams(cfg, opts)
}

// OpenRepositoryWithParams loads an existing git repository using an
// already built Config, giving full control over every path used by
// the repository.
func OpenRepositoryWithParams(cfg *config.Config, opts OpenOptions) (*Repository, error) {
	r := &Repository{Config: cfg}

	r.dotGit = opts.GitBackend
	if r.dotGit == nil {
		b, err := fsbackend.New(ginternals.DotGitPath(cfg))
		if err != nil {
			return nil, xerrors.Errorf("could not create backend: %w", err)
		}
		r.dotGit = b
	}

	if cfg.WorkTreePath != "" {
		r.workTree = opts.WorkingTreeBackend
		if r.workTree == nil {
			r.workTree = afero.NewOsFs()
		}
	}

	// Since we can't reliably check for the directory's existence
	// across backends, we instead check that HEAD resolves, since it
	// should always be there in a valid repository.
	if _, err := r.dotGit.Reference(ginternals.Head); err != nil {
		return nil, ErrRepositoryNotExist
	}

	return r, nil
}

// Close frees all the resources held by the repository
func (r *Repository) Close() error {
	return r.dotGit.Close()
}

// IsBare returns whether the repository has no working tree
func (r *Repository) IsBare() bool {
	return r.workTree == nil
}

// WorkTree returns the filesystem backing the repository's working
// directory, or nil if the repository is bare.
func (r *Repository) WorkTree() afero.Fs {
	return r.workTree
}

// GetObject returns the object matching the given oid
func (r *Repository) GetObject(oid ginternals.Oid) (*object.Object, error) {
	return r.dotGit.Object(oid)
}

// NewBlob creates, persists, and returns a new Blob object
func (r *Repository) NewBlob(data []byte) (*object.Blob, error) {
	o := object.New(object.TypeBlob, data)
	if _, err := r.dotGit.WriteObject(o); err != nil {
		return nil, xerrors.Errorf("could not persist blob: %w", err)
	}
	return object.NewBlob(o), nil
}

// WriteObject persists an already-built object of any type. Used by
// callers (like the clone orchestrator) that decode objects themselves
// instead of building them through one of the New* helpers above.
func (r *Repository) WriteObject(o *object.Object) (ginternals.Oid, error) {
	return r.dotGit.WriteObject(o)
}

// HasObject returns whether an object with the given oid already exists
// in the repository's object database.
func (r *Repository) HasObject(oid ginternals.Oid) (bool, error) {
	return r.dotGit.HasObject(oid)
}

// SetReference writes or overwrites a reference, moving it if it already
// exists. Used to update branches/HEAD after a clone's fetch completes.
func (r *Repository) SetReference(ref *ginternals.Reference) error {
	return r.dotGit.WriteReference(ref)
}

// GetCommit returns the commit matching the given oid
func (r *Repository) GetCommit(oid ginternals.Oid) (*object.Commit, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not find commit %s: %w", oid.String(), err)
	}
	return o.AsCommit()
}

// GetTree returns the tree matching the given oid
func (r *Repository) GetTree(oid ginternals.Oid) (*object.Tree, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not find tree %s: %w", oid.String(), err)
	}
	return o.AsTree()
}

// GetReference returns the reference matching the given name
func (r *Repository) GetReference(name string) (*ginternals.Reference, error) {
	return r.dotGit.Reference(name)
}

// NewCommit creates a new commit, persists it, and moves the reference
// given by refName to point to it
func (r *Repository) NewCommit(refName string, tree *object.Tree, author object.Signature, opts *object.CommitOptions) (*object.Commit, error) {
	for _, parentID := range opts.ParentsID {
		parent, err := r.GetObject(parentID)
		if err != nil {
			return nil, xerrors.Errorf("could not find parent %s: %w", parentID.String(), err)
		}
		if parent.Type() != object.TypeCommit {
			return nil, xerrors.Errorf("invalid type for parent %s: got %s, want %s", parentID.String(), parent.Type(), object.TypeCommit)
		}
	}

	c := object.NewCommit(tree.ID(), author, opts)
	if _, err := r.dotGit.WriteObject(c.ToObject()); err != nil {
		return nil, xerrors.Errorf("could not persist commit: %w", err)
	}

	ref := ginternals.NewReference(refName, c.ID())
	if err := r.dotGit.WriteReference(ref); err != nil {
		return nil, xerrors.Errorf("could not update reference %s: %w", refName, err)
	}

	return c, nil
}

// NewDetachedCommit creates a new commit and persists it, without
// moving any reference
func (r *Repository) NewDetachedCommit(tree *object.Tree, author object.Signature, opts *object.CommitOptions) (*object.Commit, error) {
	for _, parentID := range opts.ParentsID {
		parent, err := r.GetObject(parentID)
		if err != nil {
			return nil, xerrors.Errorf("could not find parent %s: %w", parentID.String(), err)
		}
		if parent.Type() != object.TypeCommit {
			return nil, xerrors.Errorf("invalid type for parent %s: got %s, want %s", parentID.String(), parent.Type(), object.TypeCommit)
		}
	}

	c := object.NewCommit(tree.ID(), author, opts)
	if _, err := r.dotGit.WriteObject(c.ToObject()); err != nil {
		return nil, xerrors.Errorf("could not persist commit: %w", err)
	}

	return c, nil
}

// GetTag returns the reference of the tag matching the given short name
func (r *Repository) GetTag(name string) (*ginternals.Reference, error) {
	ref, err := r.dotGit.Reference(ginternals.LocalTagFullName(name))
	if err != nil {
		if errors.Is(err, ginternals.ErrRefNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return ref, nil
}

// NewTag creates a new annotated tag, persists it, and creates the
// reference pointing to it
func (r *Repository) NewTag(p *object.TagParams) (*object.Tag, error) {
	found, err := r.dotGit.HasObject(p.Target.ID())
	if err != nil {
		return nil, xerrors.Errorf("could not check if target exists: %w", err)
	}
	if !found {
		return nil, xerrors.Errorf("target has not been persisted: %w", object.ErrObjectInvalid)
	}

	tag := object.NewTag(p)
	if _, err := r.dotGit.WriteObject(tag.ToObject()); err != nil {
		return nil, xerrors.Errorf("could not persist tag: %w", err)
	}

	ref := ginternals.NewReference(ginternals.LocalTagFullName(p.Name), tag.ID())
	if err := r.dotGit.WriteReferenceSafe(ref); err != nil {
		if errors.Is(err, ginternals.ErrRefExists) {
			return nil, ErrTagExists
		}
		return nil, xerrors.Errorf("could not write tag reference: %w", err)
	}

	return tag, nil
}

// NewLightweightTag creates a reference pointing directly to the given
// oid, without creating a tag object
func (r *Repository) NewLightweightTag(name string, target ginternals.Oid) (*ginternals.Reference, error) {
	found, err := r.dotGit.HasObject(target)
	if err != nil {
		return nil, xerrors.Errorf("could not check if target exists: %w", err)
	}
	if !found {
		return nil, xerrors.Errorf("target has not been persisted: %w", object.ErrObjectInvalid)
	}

	ref := ginternals.NewReference(ginternals.LocalTagFullName(name), target)
	if err := r.dotGit.WriteReferenceSafe(ref); err != nil {
		if errors.Is(err, ginternals.ErrRefExists) {
			return nil, ErrTagExists
		}
		return nil, xerrors.Errorf("could not write tag reference: %w", err)
	}

	return ref, nil
}
