package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ashbourne/gitkit/env"
	"github.com/ashbourne/gitkit/internal/testhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRepository(t *testing.T) {
	t.Parallel()

	repoPath, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	require.NoError(t, initCmd(bytes.NewBufferString(""), &globalFlags{
		env: env.NewFromKVList([]string{}),
		C:   &testhelper.StringValue{Value: repoPath},
	}, initCmdFlags{}, ""))

	tmpPath, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	testCases := []struct {
		desc        string
		C           string
		expectError bool
	}{
		{
			desc: "A given path should be used",
			C:    repoPath,
		},
		{
			desc:        "Invalid path should return an error",
			C:           filepath.Join(tmpPath, "nope"),
			expectError: true,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			cfg := &globalFlags{
				env: env.NewFromKVList([]string{}),
				C:   &testhelper.StringValue{Value: tc.C},
			}
			repo, err := loadRepository(cfg)
			if tc.expectError {
				require.Error(t, err)
				return
			}
			t.Cleanup(func() {
				assert.NoError(t, repo.Close())
			})

			require.NoError(t, err)
			require.NotNil(t, repo)
		})
	}
}

func TestFprintln(t *testing.T) {
	t.Parallel()

	out := bytes.NewBufferString("")
	fprintln(false, out, "hello")
	assert.Equal(t, "hello\n", out.String())

	out = bytes.NewBufferString("")
	fprintln(true, out, "hello")
	assert.Empty(t, out.String())
}
