package packfile_test

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1" //nolint:gosec // this is git's hash function, not used for security here
	"encoding/binary"
	"encoding/hex"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ashbourne/gitkit/ginternals"
	"github.com/ashbourne/gitkit/ginternals/object"
	"github.com/ashbourne/gitkit/internal/testhelper"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// testRepoObjects is a small, self-consistent set of objects (one
// blob, one tree pointing at it, one commit pointing at the tree)
// baked into a test packfile to exercise Pack.GetObject without
// needing a tarball of a real git repository.
type testRepoObjects struct {
	blob   *object.Blob
	tree   *object.Tree
	commit *object.Commit
}

func buildTestRepoObjects(t *testing.T) (objs testRepoObjects, packObjs []packTestObject) {
	t.Helper()

	blobObj := object.New(object.TypeBlob, []byte("# Binaries for programs and plugins\n*.exe\n*.dll\n"))
	blob := blobObj.AsBlob()

	tree := object.NewTree([]object.TreeEntry{
		{Mode: object.ModeFile, Path: ".gitignore", ID: blob.ID()},
		{Mode: object.ModeFile, Path: "const.go", ID: blob.ID()},
	})
	treeObj := tree.ToObject()

	parentOid, err := ginternals.NewOidFromStr("f96f63e52cb8862b2c2d1a8b868229259c57854e")
	require.NoError(t, err)

	sig := object.NewSignature("Melvin Laplanche", "melvin.wont.reply@gitkit.test")
	commit := object.NewCommit(treeObj.ID(), sig, &object.CommitOptions{
		Message:   "build: switch to go module\n",
		ParentsID: []ginternals.Oid{parentOid},
	})
	commitObj := commit.ToObject()

	objs = testRepoObjects{blob: blob, tree: tree, commit: commit}
	packObjs = []packTestObject{
		{typ: object.TypeBlob, content: blobObj.Bytes()},
		{typ: object.TypeTree, content: treeObj.Bytes()},
		{typ: object.TypeCommit, content: commitObj.Bytes()},
	}
	return objs, packObjs
}

// packTestObject describes one non-deltified object to bake into a
// test packfile.
type packTestObject struct {
	typ     object.Type
	content []byte
}

func (o packTestObject) oid() ginternals.Oid {
	return object.New(o.typ, o.content).ID()
}

// buildTestPack writes a minimal, valid pack + idx pair (v2, no
// deltas) to a temp directory on the real filesystem and returns the
// path to the .pack file. It lets packfile tests exercise the real
// binary format without needing a tarball fixture of an actual git
// repository.
//
// A real directory is used (rather than afero's in-memory fs)
// because Pack.NewFromFile opens the companion .idx file directly
// through os.Open.
func buildTestPack(t *testing.T, objs []packTestObject) (dir string, packPath string, packID string, offsets map[ginternals.Oid]uint64) {
	t.Helper()

	dir, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	sorted := make([]packTestObject, len(objs))
	copy(sorted, objs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].oid().Bytes(), sorted[j].oid().Bytes()) < 0
	})

	var pack bytes.Buffer
	pack.Write([]byte{'P', 'A', 'C', 'K'})
	pack.Write([]byte{0, 0, 0, 2})
	countBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(countBuf, uint32(len(sorted)))
	pack.Write(countBuf)

	offsets = make(map[ginternals.Oid]uint64, len(sorted))
	for _, o := range sorted {
		offsets[o.oid()] = uint64(pack.Len())

		size := len(o.content)
		// first byte: MSB(1 if more bytes follow) | 3-bit type | 4 low bits of size
		first := byte(o.typ) << 4
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
		_, err := zw.Write(o.content)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		pack.Write(compressed.Bytes())
	}

	packSum := sha1.Sum(pack.Bytes()) //nolint:gosec // git's hash function
	pack.Write(packSum[:])

	idx := buildTestIndex(sorted, offsets)

	fs := afero.NewOsFs()
	packPath = filepath.Join(dir, "pack-test.pack")
	require.NoError(t, afero.WriteFile(fs, packPath, pack.Bytes(), 0o644))

	idxPath := filepath.Join(dir, "pack-test.idx")
	require.NoError(t, afero.WriteFile(fs, idxPath, idx, 0o644))

	return dir, packPath, hex.EncodeToString(packSum[:]), offsets
}

func buildTestIndex(sorted []packTestObject, offsets map[ginternals.Oid]uint64) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{255, 't', 'O', 'c', 0, 0, 0, 2})

	// layer1: cumulative count of objects per first byte value
	counts := make([]uint32, 256)
	for _, o := range sorted {
		counts[o.oid().Bytes()[0]]++
	}
	cumul := uint32(0)
	layer1 := make([]byte, 0, 256*4)
	for i := 0; i < 256; i++ {
		cumul += counts[i]
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, cumul)
		layer1 = append(layer1, b...)
	}
	buf.Write(layer1)

	// layer2: sorted oids
	for _, o := range sorted {
		oid := o.oid()
		buf.Write(oid.Bytes())
	}

	// layer3: crc32 placeholders, unused by the current parser
	for range sorted {
		buf.Write([]byte{0, 0, 0, 0})
	}

	// layer4: offsets, assuming a pack well under 2GB (MSB always 0)
	for _, o := range sorted {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(offsets[o.oid()]))
		buf.Write(b)
	}

	// footer: 2 sha1 sums, not validated by the current parser
	buf.Write(make([]byte, 40))

	return buf.Bytes()
}
