package clone_test

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ashbourne/gitkit/clone"
	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/object"
	"github.com/ashbourne/gitkit/internal/testhelper"
	"github.com/ashbourne/gitkit/pktline"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPack packs a blob, a tree pointing at it and a commit pointing
// at the tree into a minimal, non-deltified v2 packfile, the same way
// ginternals/packfile's own test helper does, kept local here since
// test helpers aren't exported across packages.
func buildPack(t *testing.T, objs ...*object.Object) []byte {
	t.Helper()

	var pack bytes.Buffer
	pack.Write([]byte{'P', 'A', 'C', 'K'})
	pack.Write([]byte{0, 0, 0, 2})
	countBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(countBuf, uint32(len(objs)))
	pack.Write(countBuf)

	for _, o := range objs {
		content := o.Bytes()
		size := len(content)
		first := byte(o.Type()) << 4
		rest := size >> 4
		if rest > 0 {
			first |= 0b1000_0000
		}
		first |= byte(size & 0b1111)
		pack.WriteByte(first)
		for rest > 0 {
			b := byte(rest & 0b0111_1111)
			rest >>= 7
			if rest > 0 {
				b |= 0b1000_0000
			}
			pack.WriteByte(b)
		}

		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		_, err := zw.Write(content)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		pack.Write(compressed.Bytes())
	}

	pack.Write(make([]byte, 20))
	return pack.Bytes()
}

func newFakeRemote(t *testing.T, branch string, headOid ginternals.Oid, pack []byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/info/refs", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, pktline.EncodeString(w, "version 2\n"))
		require.NoError(t, pktline.WriteFlush(w))
	})
	mux.HandleFunc("/git-upload-pack", func(w http.ResponseWriter, r *http.Request) {
		body, err := readAll(r)
		require.NoError(t, err)
		lines, err := pktline.ReadLines(bytes.NewReader(body))
		require.NoError(t, err)
		require.NotEmpty(t, lines)

		switch string(bytes.TrimRight(lines[0].Payload, "\n")) {
		case "command=ls-refs":
			require.NoError(t, pktline.EncodeString(w, headOid.String()+" "+branch+"\n"))
			require.NoError(t, pktline.WriteFlush(w))
		case "command=fetch":
			require.NoError(t, pktline.EncodeString(w, "packfile\n"))
			band := append([]byte{1}, pack...)
			require.NoError(t, pktline.Encode(w, band))
			require.NoError(t, pktline.WriteFlush(w))
		default:
			t.Fatalf("unexpected command %q", string(lines[0].Payload))
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}

func TestClone(t *testing.T) {
	t.Parallel()

	blobObj := object.New(object.TypeBlob, []byte("hello world"))
	tree := object.NewTree([]object.TreeEntry{
		{Mode: object.ModeFile, Path: "hello.txt", ID: blobObj.ID()},
	})
	treeObj := tree.ToObject()
	sig := object.NewSignature("Ada Lovelace", "ada@example.com")
	commit := object.NewCommit(treeObj.ID(), sig, &object.CommitOptions{Message: "initial\n"})
	commitObj := commit.ToObject()

	pack := buildPack(t, blobObj, treeObj, commitObj)

	srv := newFakeRemote(t, "refs/heads/main", commitObj.ID(), pack)

	dir, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)
	target := filepath.Join(dir, "repo")

	r, err := clone.Clone(context.Background(), srv.URL, target)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.GetCommit(commitObj.ID())
	require.NoError(t, err)
	assert.Equal(t, "initial\n", got.Message())

	data, err := afero.ReadFile(afero.NewOsFs(), filepath.Join(target, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	head, err := r.GetReference(ginternals.Head)
	require.NoError(t, err)
	assert.Equal(t, commitObj.ID(), head.Target())
}

func TestCloneEmptyRepository(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/info/refs", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, pktline.EncodeString(w, "version 2\n"))
		require.NoError(t, pktline.WriteFlush(w))
	})
	mux.HandleFunc("/git-upload-pack", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, pktline.WriteFlush(w))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	_, err := clone.Clone(context.Background(), srv.URL, filepath.Join(dir, "repo"))
	require.Error(t, err)
	assert.ErrorIs(t, err, clone.ErrEmptyRepository)
}
