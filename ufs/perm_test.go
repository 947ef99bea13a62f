package ufs

import (
	"io/fs"
	"os"
	"testing"
	"time"

	"aqwari.net/net/ufs9p/styxproto"
)

type fakeFileInfo struct {
	mode  os.FileMode
	isDir bool
}

func (f fakeFileInfo) Name() string       { return "fake" }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() fs.FileMode  { return f.mode }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.isDir }
func (f fakeFileInfo) Sys() interface{}   { return nil }

func TestCheckRootBypasses(t *testing.T) {
	fi := fakeFileInfo{mode: 0}
	root := identity{uid: 0}
	if !check(fi, root, accessRdwr) {
		t.Error("uid 0 must bypass all permission checks")
	}
}

func TestCheckClassSelection(t *testing.T) {
	// mode 0640: owner rw, group r, other nothing. statOwner returns
	// zero uid/gid on this fake FileInfo (no *syscall.Stat_t), so
	// every identity here falls into the "other" class unless it is
	// uid 0.
	fi := fakeFileInfo{mode: 0640}
	other := identity{uid: 99, gid: 99}

	if check(fi, other, accessRead) {
		t.Error("other class should not have read access under mode 0640")
	}
	if check(fi, other, accessWrite) {
		t.Error("other class should not have write access under mode 0640")
	}
}

func TestCheckRdwrRequiresBothBits(t *testing.T) {
	// other bits = 4 (read only)
	fi := fakeFileInfo{mode: 0004}
	other := identity{uid: 99, gid: 99}

	if !check(fi, other, accessRead) {
		t.Error("expected read access")
	}
	if check(fi, other, accessRdwr) {
		t.Error("rdwr must fail if the write bit is missing, even though read is granted")
	}
}

func TestOm2Mode(t *testing.T) {
	cases := []struct {
		om   byte
		want accessMode
	}{
		{0, accessRead},
		{1, accessWrite},
		{2, accessRdwr},
		{3, accessExec},
	}
	for _, c := range cases {
		if got := om2mode(c.om); got != c.want {
			t.Errorf("om2mode(%d) = %v, want %v", c.om, got, c.want)
		}
	}
}

func TestOm2ModeOtruncRequiresWrite(t *testing.T) {
	// OREAD|OTRUNC must still carry accessWrite: truncating a file is
	// a write regardless of the open's read/write intent, and a
	// read-only-configured backend must reject it.
	got := om2mode(styxproto.OREAD | styxproto.OTRUNC)
	if got&accessWrite == 0 {
		t.Errorf("om2mode(OREAD|OTRUNC) = %v, missing accessWrite", got)
	}
	if got&accessRead == 0 {
		t.Errorf("om2mode(OREAD|OTRUNC) = %v, missing accessRead", got)
	}
}
