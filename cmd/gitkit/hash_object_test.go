package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashbourne/gitkit/env"
	"github.com/ashbourne/gitkit/internal/testhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashObject(t *testing.T) {
	t.Parallel()

	t.Run("should hash a blob without writing it", func(t *testing.T) {
		t.Parallel()

		dir, cleanup := testhelper.TempDir(t)
		t.Cleanup(cleanup)

		filePath := filepath.Join(dir, "hello.txt")
		require.NoError(t, os.WriteFile(filePath, []byte("hello world"), 0o644))

		out := bytes.NewBufferString("")
		err := hashObjectCmd(out, &globalFlags{
			env: env.NewFromKVList([]string{}),
			C:   &testhelper.StringValue{Value: dir},
		}, filePath, "blob", false)
		require.NoError(t, err)

		assert.Equal(t, "95d09f2b10159347eece71399a7e2e907ea3df4f\n", out.String())
	})

	t.Run("should reject an unsupported type", func(t *testing.T) {
		t.Parallel()

		dir, cleanup := testhelper.TempDir(t)
		t.Cleanup(cleanup)

		filePath := filepath.Join(dir, "hello.txt")
		require.NoError(t, os.WriteFile(filePath, []byte("hello world"), 0o644))

		err := hashObjectCmd(bytes.NewBufferString(""), &globalFlags{
			env: env.NewFromKVList([]string{}),
			C:   &testhelper.StringValue{Value: dir},
		}, filePath, "bogus", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported object type")
	})

	t.Run("should refuse -w for non-blob types", func(t *testing.T) {
		t.Parallel()

		dir, cleanup := testhelper.TempDir(t)
		t.Cleanup(cleanup)

		filePath := filepath.Join(dir, "tree.txt")
		require.NoError(t, os.WriteFile(filePath, []byte(""), 0o644))

		err := initCmd(bytes.NewBufferString(""), &globalFlags{
			env: env.NewFromKVList([]string{}),
			C:   &testhelper.StringValue{Value: dir},
		}, initCmdFlags{}, "")
		require.NoError(t, err)

		err = hashObjectCmd(bytes.NewBufferString(""), &globalFlags{
			env: env.NewFromKVList([]string{}),
			C:   &testhelper.StringValue{Value: dir},
		}, filePath, "tree", true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "writing non-blob objects is not supported")
	})
}
