package packfile_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/object"
	"github.com/ashbourne/gitkit/ginternals/packfile"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromFile(t *testing.T) {
	t.Parallel()

	t.Run("valid packfile should pass", func(t *testing.T) {
		t.Parallel()

		_, packObjs := buildTestRepoObjects(t)
		_, packPath, packID, _ := buildTestPack(t, packObjs)

		pack, err := packfile.NewFromFile(afero.NewOsFs(), packPath)
		require.NoError(t, err)
		assert.NotNil(t, pack)
		t.Cleanup(func() {
			require.NoError(t, pack.Close())
		})

		id, err := pack.ID()
		require.NoError(t, err)
		assert.Equal(t, packID, id.String())
	})

	t.Run("indexfile should fail", func(t *testing.T) {
		t.Parallel()

		_, packObjs := buildTestRepoObjects(t)
		dir, _, _, _ := buildTestPack(t, packObjs)

		// pass the .idx file where a .pack is expected
		pack, err := packfile.NewFromFile(afero.NewOsFs(), filepath.Join(dir, "pack-test.idx"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, packfile.ErrInvalidMagic))
		assert.Nil(t, pack)
	})
}

func TestGetObject(t *testing.T) {
	t.Parallel()

	t.Run("valid object should return an object", func(t *testing.T) {
		t.Parallel()

		repoObjs, packObjs := buildTestRepoObjects(t)
		_, packPath, _, _ := buildTestPack(t, packObjs)

		pack, err := packfile.NewFromFile(afero.NewOsFs(), packPath)
		require.NoError(t, err)
		assert.NotNil(t, pack)
		t.Cleanup(func() {
			require.NoError(t, pack.Close())
		})

		t.Run("commit", func(t *testing.T) {
			o, err := pack.GetObject(repoObjs.commit.ID())
			require.NoError(t, err)
			require.Equal(t, object.TypeCommit, o.Type())
			commit, err := o.AsCommit()
			require.NoError(t, err)
			require.Equal(t, repoObjs.commit.ID(), commit.ID())
			require.NotZero(t, commit.Author())
			require.NotZero(t, commit.Committer())

			require.Len(t, commit.ParentIDs(), 1)
			assert.Equal(t, repoObjs.commit.ParentIDs()[0], commit.ParentIDs()[0])

			assert.Equal(t, "build: switch to go module\n", commit.Message())
			assert.Equal(t, "Melvin Laplanche", commit.Author().Name)
			assert.Equal(t, "Melvin Laplanche", commit.Committer().Name)

			assert.Equal(t, repoObjs.tree.ID(), commit.TreeID())
		})

		t.Run("blob", func(t *testing.T) {
			o, err := pack.GetObject(repoObjs.blob.ID())
			require.NoError(t, err)
			require.Equal(t, object.TypeBlob, o.Type())

			blob := o.AsBlob()
			require.Equal(t, repoObjs.blob.ID(), blob.ID())
			assert.Equal(t, repoObjs.blob.Size(), blob.Size())
			assert.Equal(t, "# Binaries for programs and plugins", string(blob.Bytes()[:35]))
		})

		t.Run("tree", func(t *testing.T) {
			o, err := pack.GetObject(repoObjs.tree.ID())
			require.NoError(t, err)
			require.Equal(t, object.TypeTree, o.Type())

			tree, err := o.AsTree()
			require.NoError(t, err)
			require.Equal(t, repoObjs.tree.ID(), tree.ID())
			require.Len(t, tree.Entries(), 2)

			entry := object.TreeEntry{
				Mode: object.ModeFile,
				ID:   repoObjs.blob.ID(),
				Path: "const.go",
			}
			require.Equal(t, entry, tree.Entries()[1])
		})

		t.Run("tag", func(t *testing.T) {
			t.Skip("tags not yet supported")
		})
	})
}

func TestObjectCount(t *testing.T) {
	t.Parallel()

	t.Run("count the amount of objects in the test pack", func(t *testing.T) {
		t.Parallel()

		_, packObjs := buildTestRepoObjects(t)
		_, packPath, _, _ := buildTestPack(t, packObjs)

		pack, err := packfile.NewFromFile(afero.NewOsFs(), packPath)
		require.NoError(t, err)
		assert.NotNil(t, pack)
		t.Cleanup(func() {
			require.NoError(t, pack.Close())
		})

		assert.Equal(t, uint32(len(packObjs)), pack.ObjectCount())
	})
}

func TestWalkOids(t *testing.T) {
	t.Parallel()

	_, packObjs := buildTestRepoObjects(t)
	_, packPath, _, _ := buildTestPack(t, packObjs)

	pack, err := packfile.NewFromFile(afero.NewOsFs(), packPath)
	require.NoError(t, err)
	assert.NotNil(t, pack)
	t.Cleanup(func() {
		require.NoError(t, pack.Close())
	})

	t.Run("Should return all the objects", func(t *testing.T) {
		t.Parallel()

		totalObject := 0
		err := pack.WalkOids(func(oid ginternals.Oid) error {
			totalObject++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, len(packObjs), totalObject)
	})

	t.Run("Should stop the walk", func(t *testing.T) {
		t.Parallel()

		totalObject := 0
		err := pack.WalkOids(func(oid ginternals.Oid) error {
			if totalObject == 1 {
				return packfile.OidWalkStop
			}
			totalObject++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, totalObject)
	})

	t.Run("Should propage an error", func(t *testing.T) {
		t.Parallel()

		someErr := errors.New("some error")
		totalObject := 0
		err := pack.WalkOids(func(oid ginternals.Oid) error {
			if totalObject == 1 {
				return someErr
			}
			totalObject++
			return nil
		})
		assert.Error(t, err)
		assert.ErrorIs(t, err, someErr)
		assert.Equal(t, 1, totalObject)
	})
}
