package minixfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateWriteReadRoundTrip(t *testing.T) {
	fs, _, root := newTestFS(64, 512, 64, 32, 4)

	ino, err := fs.createInode(root, "hello.txt", ModeReg|0o644, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, ino)

	payload := []byte("hello, minix")
	n, err := fs.Write(ino, 0, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = fs.Read(ino, 0, buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])

	require.NoError(t, fs.Iput(ino))
}

func TestWriteSpanningMultipleBlocks(t *testing.T) {
	fs, _, root := newTestFS(64, 512, 64, 32, 4)
	ino, err := fs.createInode(root, "big", ModeReg|0o644, 0, 0)
	require.NoError(t, err)

	data := make([]byte, BlockSize*3+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	n, err := fs.Write(ino, 0, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	readBack := make([]byte, len(data))
	n, err = fs.Read(ino, 0, readBack)
	require.NoError(t, err)
	require.Equal(t, data, readBack[:n])
}

func TestWriteThroughSingleIndirectBlocks(t *testing.T) {
	fs, _, root := newTestFS(64, 4096, 1024, 32, 4)
	ino, err := fs.createInode(root, "indirect", ModeReg|0o644, 0, 0)
	require.NoError(t, err)

	// Block 10 lives beyond the 7 direct zones, inside the single
	// indirect block.
	payload := []byte("indirect-block-data")
	n, err := fs.Write(ino, int64(10*BlockSize), payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = fs.Read(ino, int64(10*BlockSize), buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])
}

func TestAddEntryTruncatesOverLongNamesByDefault(t *testing.T) {
	fs, _, root := newTestFS(64, 512, 64, 32, 4)

	ino, err := fs.createInode(root, "a-name-well-over-fourteen-bytes.txt", ModeReg|0o644, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, ino)

	_, _, _, err = fs.findEntry(root, "a-name-well-ov")
	require.NoError(t, err)
}

func TestAddEntryRejectsOverLongNamesWhenNoTruncateNamesSet(t *testing.T) {
	fs, _, root := newTestFSWithOptions(64, 512, 64, 32, 4, true)

	_, err := fs.createInode(root, "a-name-well-over-fourteen-bytes.txt", ModeReg|0o644, 0, 0)
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestMkdirCreatesADirectoryOfSizeTwoEntries(t *testing.T) {
	fs, _, root := newTestFS(64, 512, 64, 32, 4)

	require.NoError(t, fs.Mkdir(root, "sub", 0o755, 0, 0))
	inum, _, _, err := fs.findEntry(root, "sub")
	require.NoError(t, err)
	sub, err := fs.iget(root.Dev, inum)
	require.NoError(t, err)
	require.Equal(t, uint32(2*DirEntrySize), sub.Size)
	require.NoError(t, fs.Iput(sub))
}

func TestMkdirRmdir(t *testing.T) {
	fs, _, root := newTestFS(64, 512, 64, 32, 4)

	require.NoError(t, fs.Mkdir(root, "sub", 0o755, 0, 0))
	_, _, _, err := fs.findEntry(root, "sub")
	require.NoError(t, err)

	require.NoError(t, fs.Rmdir(root, "sub"))
	_, _, _, err = fs.findEntry(root, "sub")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRmdirRejectsNonEmpty(t *testing.T) {
	fs, _, root := newTestFS(64, 512, 64, 32, 4)
	require.NoError(t, fs.Mkdir(root, "sub", 0o755, 0, 0))

	inum, _, _, err := fs.findEntry(root, "sub")
	require.NoError(t, err)
	sub, err := fs.iget(root.Dev, inum)
	require.NoError(t, err)
	require.NoError(t, fs.addEntry(sub, "file", 5))
	require.NoError(t, fs.Iput(sub))

	err = fs.Rmdir(root, "sub")
	require.ErrorIs(t, err, ErrNotEmpty)
}

func TestLinkAndUnlink(t *testing.T) {
	fs, _, root := newTestFS(64, 512, 64, 32, 4)
	ino, err := fs.createInode(root, "a", ModeReg|0o644, 0, 0)
	require.NoError(t, err)

	require.NoError(t, fs.Link(ino, root, "b"))
	require.Equal(t, uint8(2), ino.Links)

	require.NoError(t, fs.Unlink(root, "a"))
	require.Equal(t, uint8(1), ino.Links)

	require.NoError(t, fs.Unlink(root, "b"))
	require.NoError(t, fs.Iput(ino))
}

func TestUnlinkToZeroLinksFreesInode(t *testing.T) {
	fs, dev, root := newTestFS(64, 512, 64, 32, 4)
	ino, err := fs.createInode(root, "doomed", ModeReg|0o644, 0, 0)
	require.NoError(t, err)
	num := ino.Num
	require.NoError(t, fs.Iput(ino))

	require.NoError(t, fs.Unlink(root, "doomed"))

	sb := fs.supers.getSuper(dev)
	require.False(t, bitTest(sb.imap, num))
}

func TestTruncateFreesZones(t *testing.T) {
	fs, dev, root := newTestFS(64, 512, 64, 32, 4)
	ino, err := fs.createInode(root, "trunc", ModeReg|0o644, 0, 0)
	require.NoError(t, err)

	data := make([]byte, BlockSize*5)
	_, err = fs.Write(ino, 0, data)
	require.NoError(t, err)

	zone := ino.Zones[0]
	require.NoError(t, fs.truncate(ino))
	require.Equal(t, uint32(0), ino.Size)

	sb := fs.supers.getSuper(dev)
	bit := zone - (sb.FirstDataZone - 1)
	require.False(t, bitTest(sb.zmap, bit))
}

func TestDirNamei(t *testing.T) {
	fs, _, root := newTestFS(64, 512, 64, 32, 4)
	require.NoError(t, fs.Mkdir(root, "a", 0o755, 0, 0))

	inum, _, _, err := fs.findEntry(root, "a")
	require.NoError(t, err)
	aDir, err := fs.iget(root.Dev, inum)
	require.NoError(t, err)
	require.NoError(t, fs.Mkdir(aDir, "b", 0o755, 0, 0))
	require.NoError(t, fs.Iput(aDir))

	parent, last, err := fs.dirNamei("/a/b", root, root)
	require.NoError(t, err)
	require.Equal(t, "b", last)
	require.NoError(t, fs.Iput(parent))
}

func TestOpenNameiCreate(t *testing.T) {
	fs, _, root := newTestFS(64, 512, 64, 32, 4)

	ino, err := fs.OpenNamei("/newfile", OpenFlags{Create: true, Mode: ModeReg | 0o644}, 0, 0, root, root)
	require.NoError(t, err)
	require.NotNil(t, ino)
	require.NoError(t, fs.Iput(ino))

	_, err = fs.OpenNamei("/newfile", OpenFlags{Create: true, Exclusive: true}, 0, 0, root, root)
	require.ErrorIs(t, err, ErrExists)
}

func TestPipeReadWrite(t *testing.T) {
	fs, _, _ := newTestFS(64, 512, 64, 32, 4)
	_ = fs
	p := (&FileSystem{}).GetPipeInode()

	n := PipeWrite(p, []byte("abc"))
	require.Equal(t, 3, n)
	require.False(t, PipeEmpty(p))

	buf := make([]byte, 3)
	n = PipeRead(p, buf)
	require.Equal(t, 3, n)
	require.Equal(t, "abc", string(buf))
	require.True(t, PipeEmpty(p))
}
