package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashbourne/gitkit/env"
	"github.com/ashbourne/gitkit/ginternals/config"
	"github.com/ashbourne/gitkit/internal/testhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitParams(t *testing.T) {
	t.Parallel()

	dirPath, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	cwd, err := os.Getwd()
	require.NoError(t, err)

	cmd := newRootCmd(cwd, env.NewFromOs())
	cmd.SetArgs([]string{"init", "-C", dirPath})

	require.NotPanics(t, func() {
		err = cmd.Execute()
	})
	require.NoError(t, err)
}

func TestInit(t *testing.T) {
	t.Parallel()

	t.Run("should work with default params", func(t *testing.T) {
		t.Parallel()

		dirPath, cleanup := testhelper.TempDir(t)
		t.Cleanup(cleanup)

		stdout := bytes.NewBufferString("")

		err := initCmd(stdout, &globalFlags{
			env: env.NewFromKVList([]string{}),
			C:   &testhelper.StringValue{Value: dirPath},
		}, initCmdFlags{}, "")
		require.NoError(t, err)

		gitDir := filepath.Join(dirPath, config.DefaultDotGitDirName)
		info, err := os.Stat(gitDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir(), "expected .git to be a dir")

		expectedOut := fmt.Sprintf("Initialized empty Git repository in %s\n", gitDir)
		assert.Equal(t, expectedOut, stdout.String())
	})

	t.Run("init an existing repo should change the output message", func(t *testing.T) {
		t.Parallel()

		dirPath, cleanup := testhelper.TempDir(t)
		t.Cleanup(cleanup)

		err := initCmd(io.Discard, &globalFlags{
			env: env.NewFromKVList([]string{}),
			C:   &testhelper.StringValue{Value: dirPath},
		}, initCmdFlags{}, "")
		require.NoError(t, err)

		stdout := bytes.NewBufferString("")
		err = initCmd(stdout, &globalFlags{
			env: env.NewFromKVList([]string{}),
			C:   &testhelper.StringValue{Value: dirPath},
		}, initCmdFlags{}, "")
		require.NoError(t, err)

		gitDir := filepath.Join(dirPath, config.DefaultDotGitDirName)
		expectedOut := fmt.Sprintf("Reinitialized existing Git repository in %s\n", gitDir)
		assert.Equal(t, expectedOut, stdout.String())
	})

	t.Run("should create a directory passed as an argument", func(t *testing.T) {
		t.Parallel()

		dirPath, cleanup := testhelper.TempDir(t)
		t.Cleanup(cleanup)

		target := filepath.Join(dirPath, "sub")
		err := initCmd(io.Discard, &globalFlags{
			env: env.NewFromKVList([]string{}),
			C:   &testhelper.StringValue{Value: dirPath},
		}, initCmdFlags{}, target)
		require.NoError(t, err)

		require.DirExists(t, filepath.Join(target, config.DefaultDotGitDirName))
	})

	t.Run("Quiet should prevent writing data to stdout", func(t *testing.T) {
		t.Parallel()

		dirPath, cleanup := testhelper.TempDir(t)
		t.Cleanup(cleanup)

		stdout := bytes.NewBufferString("")
		err := initCmd(stdout, &globalFlags{
			env: env.NewFromKVList([]string{}),
			C:   &testhelper.StringValue{Value: dirPath},
		}, initCmdFlags{quiet: true}, "")
		require.NoError(t, err)

		assert.Empty(t, stdout.String(), "no output was expected")
	})
}
