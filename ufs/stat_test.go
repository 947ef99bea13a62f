package ufs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aqwari.net/net/ufs9p/styxproto"
)

// noopStat builds a Stat whose every field is the "leave unchanged"
// sentinel, so a test can flip exactly one field at a time.
func noopStat(t *testing.T) styxproto.Stat {
	t.Helper()
	buf := make([]byte, styxproto.MaxStatLen)
	stat, _, err := styxproto.NewStatu(buf, "", "", "", "", styxproto.NoUid, styxproto.NoUid, styxproto.NoUid)
	require.NoError(t, err)
	stat.SetType(1<<16 - 1)
	stat.SetDev(1<<32 - 1)
	stat.SetQid(styxproto.NoQid)
	stat.SetMode(1<<32 - 1)
	stat.SetAtime(1<<32 - 1)
	stat.SetMtime(1<<32 - 1)
	stat.SetLength(-1)
	return stat
}

func createFid(t *testing.T, c *client, name string) {
	t.Helper()
	tag := c.nextTag()
	c.Tcreate(tag, 1, name, 0644, 2) // ORDWR, so the fid supports both read and write follow-ups
	c.Flush()
	_, ok := c.next().(styxproto.Rcreate)
	require.True(t, ok)
}

func TestWstatRename(t *testing.T) {
	dir := t.TempDir()
	b, err := New(Config{Root: dir})
	require.NoError(t, err)
	c := newTestClient(t, b)

	c.Tversion(styxproto.DefaultMaxSize, "9P2000")
	c.Flush()
	c.next()
	attach(t, c)
	createFid(t, c, "old.txt")

	stat := noopStat(t)
	newStat, _, err := styxproto.NewStatu(make([]byte, styxproto.MaxStatLen), "renamed.txt", "", "", "", styxproto.NoUid, styxproto.NoUid, styxproto.NoUid)
	require.NoError(t, err)
	newStat.SetType(stat.Type())
	newStat.SetDev(stat.Dev())
	newStat.SetQid(stat.Qid())
	newStat.SetMode(stat.Mode())
	newStat.SetAtime(stat.Atime())
	newStat.SetMtime(stat.Mtime())
	newStat.SetLength(stat.Length())

	tag := c.nextTag()
	c.Twstat(tag, 1, newStat)
	c.Flush()
	_, ok := c.next().(styxproto.Rwstat)
	require.True(t, ok)

	require.NoFileExists(t, filepath.Join(dir, "old.txt"))
	require.FileExists(t, filepath.Join(dir, "renamed.txt"))
}

func TestWstatChmodAndMtime(t *testing.T) {
	dir := t.TempDir()
	b, err := New(Config{Root: dir})
	require.NoError(t, err)
	c := newTestClient(t, b)

	c.Tversion(styxproto.DefaultMaxSize, "9P2000")
	c.Flush()
	c.next()
	attach(t, c)
	createFid(t, c, "perm.txt")

	stat := noopStat(t)
	stat.SetMode(0400)
	mtime := time.Unix(1000000, 0)
	stat.SetMtime(uint32(mtime.Unix()))

	tag := c.nextTag()
	c.Twstat(tag, 1, stat)
	c.Flush()
	_, ok := c.next().(styxproto.Rwstat)
	require.True(t, ok)

	fi, err := os.Stat(filepath.Join(dir, "perm.txt"))
	require.NoError(t, err)
	require.EqualValues(t, 0400, fi.Mode().Perm())
	require.Equal(t, mtime.Unix(), fi.ModTime().Unix())
}

func TestWstatTruncate(t *testing.T) {
	dir := t.TempDir()
	b, err := New(Config{Root: dir})
	require.NoError(t, err)
	c := newTestClient(t, b)

	c.Tversion(styxproto.DefaultMaxSize, "9P2000")
	c.Flush()
	c.next()
	attach(t, c)
	createFid(t, c, "trunc.txt")

	tag := c.nextTag()
	c.Twrite(tag, 1, 0, []byte("0123456789"))
	c.Flush()
	_, ok := c.next().(styxproto.Rwrite)
	require.True(t, ok)

	stat := noopStat(t)
	stat.SetLength(4)

	tag = c.nextTag()
	c.Twstat(tag, 1, stat)
	c.Flush()
	_, ok = c.next().(styxproto.Rwstat)
	require.True(t, ok)

	data, err := os.ReadFile(filepath.Join(dir, "trunc.txt"))
	require.NoError(t, err)
	require.Equal(t, "0123", string(data))
}

func TestWstatRejectsDevTypeQid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(styxproto.Stat)
	}{
		{"dev", func(s styxproto.Stat) { s.SetDev(0) }},
		{"type", func(s styxproto.Stat) { s.SetType(0) }},
		{"qid", func(s styxproto.Stat) { s.SetQid(styxproto.Qid(make([]byte, styxproto.QidLen))) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			b, err := New(Config{Root: dir})
			require.NoError(t, err)
			c := newTestClient(t, b)

			c.Tversion(styxproto.DefaultMaxSize, "9P2000")
			c.Flush()
			c.next()
			attach(t, c)
			createFid(t, c, "f.txt")

			stat := noopStat(t)
			tc.mutate(stat)

			tag := c.nextTag()
			c.Twstat(tag, 1, stat)
			c.Flush()
			_, ok := c.next().(styxproto.Rerror)
			require.True(t, ok, "expected Rerror for a %s change in wstat", tc.name)
		})
	}
}

func TestWstatChownByName(t *testing.T) {
	dir := t.TempDir()
	b, err := New(Config{Root: dir})
	require.NoError(t, err)
	c := newTestClient(t, b)

	c.Tversion(styxproto.DefaultMaxSize, "9P2000")
	c.Flush()
	c.next()
	attach(t, c)
	createFid(t, c, "owned.txt")

	uname := testUname(t)
	stat := noopStat(t)
	buf := make([]byte, styxproto.MaxStatLen)
	named, _, err := styxproto.NewStat(buf, "", uname, "", "")
	require.NoError(t, err)
	named.SetType(stat.Type())
	named.SetDev(stat.Dev())
	named.SetQid(stat.Qid())
	named.SetMode(stat.Mode())
	named.SetAtime(stat.Atime())
	named.SetMtime(stat.Mtime())
	named.SetLength(stat.Length())

	tag := c.nextTag()
	c.Twstat(tag, 1, named)
	c.Flush()
	reply := c.next()
	if _, ok := reply.(styxproto.Rerror); ok {
		// chowning to our own uid by name is a no-op privilege-wise on
		// most systems; an EPERM here just means the host denied the
		// chown(2), not that the name lookup was skipped.
		return
	}
	_, ok := reply.(styxproto.Rwstat)
	require.True(t, ok)
}
