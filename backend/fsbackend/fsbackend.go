// Package fsbackend contains an implementation of the backend.Backend
// interface for the filesystem
package fsbackend

import (
	"path/filepath"
	"sync"

	"github.com/ashbourne/gitkit/backend"
	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/packfile"
	"github.com/ashbourne/gitkit/internal/cache"
	"github.com/ashbourne/gitkit/internal/gitpath"
	"github.com/ashbourne/gitkit/internal/syncutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// we make sure the struct implements the interface
var _ backend.Backend = (*Backend)(nil)

// maxCachedObjects is the number of objects kept in the in-memory LRU
// cache before older entries get evicted
const maxCachedObjects = 1000

// maxObjectMutexes is the number of mutex slots used to guard
// concurrent access to a given object/reference. Collisions between
// 2 unrelated keys are acceptable, they just serialize more than
// strictly needed.
const maxObjectMutexes = 256

// Backend is a Backend implementation that uses the filesystem to store data
type Backend struct {
	root string
	fs   afero.Fs

	cache    *cache.LRU
	objectMu *syncutil.NamedMutex

	looseObjects sync.Map // map[ginternals.Oid]struct{}
	packfiles    map[ginternals.Oid]*packfile.Pack
	packsLoaded  bool
	packMu       sync.Mutex
}

// New returns a new Backend rooted at the given .git directory, using
// the regular filesystem.
func New(dotGitPath string) (*Backend, error) {
	return NewWithFS(dotGitPath, afero.NewOsFs())
}

// NewWithFS returns a new Backend rooted at the given .git directory,
// using the provided filesystem. This is mostly useful for tests that
// want to use an in-memory filesystem.
func NewWithFS(dotGitPath string, fs afero.Fs) (*Backend, error) {
	c, err := cache.NewLRU(maxCachedObjects)
	if err != nil {
		return nil, xerrors.Errorf("could not create object cache: %w", err)
	}
	b := &Backend{
		root:      dotGitPath,
		fs:        fs,
		cache:     c,
		objectMu:  syncutil.NewNamedMutex(maxObjectMutexes),
		packfiles: map[ginternals.Oid]*packfile.Pack{},
	}
	if err := b.loadLooseObject(); err != nil {
		return nil, xerrors.Errorf("could not load loose objects: %w", err)
	}
	return b, nil
}

// Close frees the resources held by the backend
func (b *Backend) Close() error {
	return nil
}

// Path returns the path to the .git directory this backend is rooted at
func (b *Backend) Path() string {
	return b.root
}

// Init initializes a repository
func (b *Backend) Init() error {
	// Create the directories
	dirs := []string{
		gitpath.ObjectsPath,
		gitpath.RefsTagsPath,
		gitpath.RefsHeadsPath,
		gitpath.ObjectsInfoPath,
		gitpath.ObjectsPackPath,
	}
	for _, d := range dirs {
		fullPath := filepath.Join(b.root, d)
		if err := b.fs.MkdirAll(fullPath, 0o750); err != nil {
			return xerrors.Errorf("could not create directory %s: %w", d, err)
		}
	}

	// Create the files with the default content
	// (taken from a repo created on github)
	files := []struct {
		path    string
		content []byte
	}{
		{
			path:    gitpath.DescriptionPath,
			content: []byte("Unnamed repository; edit this file 'description' to name the repository.\n"),
		},
	}
	for _, f := range files {
		fullPath := filepath.Join(b.root, f.path)
		if err := afero.WriteFile(b.fs, fullPath, f.content, 0o644); err != nil {
			return xerrors.Errorf("could not create file %s: %w", f.path, err)
		}
	}

	if err := b.setDefaultCfg(); err != nil {
		return xerrors.Errorf("could not set the default config: %w", err)
	}

	return nil
}

// loadPacksOnce lazily loads the packfiles located in the odb
func (b *Backend) loadPacksOnce() error {
	b.packMu.Lock()
	defer b.packMu.Unlock()

	if b.packsLoaded {
		return nil
	}
	if err := b.loadPacks(); err != nil {
		return err
	}
	b.packsLoaded = true
	return nil
}
