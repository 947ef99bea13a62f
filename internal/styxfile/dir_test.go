package styxfile

import (
	"io"
	"os"
	"testing"
	"time"

	"aqwari.net/net/ufs9p/internal/qidpool"
)

// fakeFileInfo is the minimal os.FileInfo a dirReader needs: a name
// and nothing that identifies real host ownership, so sys.FileOwner
// falls back to its default (empty) uid/gid/muid.
type fakeFileInfo struct {
	name string
}

func (fi fakeFileInfo) Name() string       { return fi.name }
func (fi fakeFileInfo) Size() int64        { return 0 }
func (fi fakeFileInfo) Mode() os.FileMode  { return 0644 }
func (fi fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (fi fakeFileInfo) IsDir() bool        { return false }
func (fi fakeFileInfo) Sys() interface{}   { return nil }

// fakeDirectory hands out fakeFileInfo entries n at a time, the same
// Readdir(n) contract *os.File follows: an empty slice and io.EOF once
// exhausted.
type fakeDirectory struct {
	entries []os.FileInfo
}

func (d *fakeDirectory) Readdir(n int) ([]os.FileInfo, error) {
	if len(d.entries) == 0 {
		return nil, io.EOF
	}
	if n <= 0 || n > len(d.entries) {
		n = len(d.entries)
	}
	batch := d.entries[:n]
	d.entries = d.entries[n:]
	return batch, nil
}

// TestDirReadBoundaryRewind drives a Tread whose requested count lands
// exactly on an entry boundary: the first entry ("a", a 50-byte stat)
// fits, but the second ("bb", 51 bytes) does not fit in the single
// byte of buffer left over. The reader must stop before the
// overflowing entry rather than splitting it across the boundary, and
// must re-emit it — not some other entry, and not a duplicate of the
// first — on the next read at the resulting offset.
func TestDirReadBoundaryRewind(t *testing.T) {
	dir := &fakeDirectory{entries: []os.FileInfo{
		fakeFileInfo{name: "a"},
		fakeFileInfo{name: "bb"},
	}}
	r := NewDir(dir, "/root", qidpool.New())

	buf := make([]byte, 51) // exactly enough for "a" (50 bytes), not "bb" (51)
	n, err := r.ReadAt(buf, 0)
	if err != nil {
		t.Fatalf("first ReadAt: %v", err)
	}
	if n != 50 {
		t.Fatalf("first ReadAt: got %d bytes, want 50 (one stat, not split)", n)
	}
	first := decodeStatName(t, buf[:n])
	if first != "a" {
		t.Fatalf("first ReadAt: got entry %q, want %q", first, "a")
	}

	// A read at the old offset plus what was actually delivered must
	// re-emit "bb" whole, not skip it and not repeat "a".
	n, err = r.ReadAt(buf, int64(n))
	if err != nil {
		t.Fatalf("second ReadAt: %v", err)
	}
	if n != 51 {
		t.Fatalf("second ReadAt: got %d bytes, want 51 (the rewound stat)", n)
	}
	second := decodeStatName(t, buf[:n])
	if second != "bb" {
		t.Fatalf("second ReadAt: got entry %q, want %q (rewound entry was lost or duplicated)", second, "bb")
	}
}

// decodeStatName extracts the name field of the single stat record
// expected to occupy buf in its entirety.
func decodeStatName(t *testing.T, buf []byte) string {
	t.Helper()
	if len(buf) < 2 {
		t.Fatalf("buffer too short for a stat size field: %d bytes", len(buf))
	}
	size := int(buf[0]) | int(buf[1])<<8
	if size+2 != len(buf) {
		t.Fatalf("stat size field %d does not match buffer length %d (entry split across read)", size, len(buf))
	}
	// name is the first length-prefixed field after the 41 fixed bytes.
	const nameOff = 41
	if len(buf) < nameOff+2 {
		t.Fatalf("buffer too short for a name field: %d bytes", len(buf))
	}
	nlen := int(buf[nameOff]) | int(buf[nameOff+1])<<8
	start := nameOff + 2
	if len(buf) < start+nlen {
		t.Fatalf("buffer too short for name of length %d", nlen)
	}
	return string(buf[start : start+nlen])
}
