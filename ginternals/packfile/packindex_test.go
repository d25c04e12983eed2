package packfile_test

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/packfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndex(t *testing.T) {
	t.Parallel()

	t.Run("valid indexfile should pass", func(t *testing.T) {
		t.Parallel()

		_, packObjs := buildTestRepoObjects(t)
		dir, _, _, _ := buildTestPack(t, packObjs)

		f, err := os.Open(filepath.Join(dir, "pack-test.idx"))
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, f.Close())
		})

		index, err := packfile.NewIndex(bufio.NewReader(f))
		require.NoError(t, err)
		assert.NotNil(t, index)
	})

	t.Run("a packfile should fail", func(t *testing.T) {
		t.Parallel()

		_, packObjs := buildTestRepoObjects(t)
		dir, _, _, _ := buildTestPack(t, packObjs)

		f, err := os.Open(filepath.Join(dir, "pack-test.pack"))
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, f.Close())
		})

		index, err := packfile.NewIndex(bufio.NewReader(f))
		require.Error(t, err)
		assert.Nil(t, index)
		assert.True(t, errors.Is(err, packfile.ErrInvalidMagic))
	})
}

func TestGetObjectOffset(t *testing.T) {
	t.Parallel()

	t.Run("self built pack", func(t *testing.T) {
		t.Parallel()

		repoObjs, packObjs := buildTestRepoObjects(t)
		dir, _, _, offsets := buildTestPack(t, packObjs)

		f, err := os.Open(filepath.Join(dir, "pack-test.idx"))
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, f.Close())
		})

		index, err := packfile.NewIndex(bufio.NewReader(f))
		require.NoError(t, err)
		assert.NotNil(t, index)

		t.Run("should work with valid oid", func(t *testing.T) {
			t.Parallel()

			offset, err := index.GetObjectOffset(repoObjs.commit.ID())
			require.NoError(t, err)
			assert.Equal(t, offsets[repoObjs.commit.ID()], offset)
		})

		t.Run("should fail with invalid oid", func(t *testing.T) {
			t.Parallel()

			_, err := index.GetObjectOffset(ginternals.NullOid)
			require.Error(t, err)
			require.True(t, errors.Is(err, ginternals.ErrObjectNotFound), "invalid error returned: %s", err.Error())
		})
	})
}
