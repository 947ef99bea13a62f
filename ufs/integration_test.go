package ufs

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"aqwari.net/net/ufs9p/internal/netutil"
	"aqwari.net/net/ufs9p/styxproto"
	"aqwari.net/net/ufs9p/styxserver"
)

// client wraps one end of a 9P connection for driving a Session under
// test, mirroring the request/response pairing styxserver/server_test.go's
// echoServer test exercises from the server side.
type client struct {
	*styxproto.Encoder
	dec *styxproto.Decoder
	tag uint16
}

func (c *client) next() styxproto.Msg {
	if !c.dec.Next() {
		panic(c.dec.Err())
	}
	return c.dec.Msg()
}

func (c *client) nextTag() uint16 {
	c.tag++
	return c.tag
}

// newTestClient dials a Backend session over a netutil.PipeListener,
// the in-process transport the teacher built so tests don't need
// permission to bind a real socket.
func newTestClient(t *testing.T, b *Backend) *client {
	t.Helper()
	var l netutil.PipeListener
	t.Cleanup(func() { l.Close() })

	go func() {
		serverSide, err := l.Accept()
		if err != nil {
			return
		}
		conn := styxserver.NewConn(serverSide, styxproto.DefaultMaxSize)
		session := b.NewSession()
		styxserver.Serve(conn, context.Background(), session)
	}()

	clientSide, err := l.Dial()
	require.NoError(t, err)
	t.Cleanup(func() { clientSide.Close() })

	return &client{
		Encoder: styxproto.NewEncoder(clientSide),
		dec:     styxproto.NewDecoder(clientSide),
	}
}

// testUname is the current host user's name: the identity mapper
// resolves uname against the real host user database, so the test
// attaches as whoever is actually running the test.
func testUname(t *testing.T) string {
	t.Helper()
	u, err := user.Current()
	require.NoError(t, err)
	return u.Username
}

func attach(t *testing.T, c *client) styxproto.Qid {
	t.Helper()
	tag := c.nextTag()
	c.Tattach(tag, 1, styxproto.NoFid, testUname(t), "")
	c.Flush()
	reply := c.next()
	m, ok := reply.(styxproto.Rattach)
	require.True(t, ok, "expected Rattach, got %T (%v)", reply, reply)
	return m.Qid()
}

func TestAttachWalkOpenRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi there"), 0644))

	b, err := New(Config{Root: dir})
	require.NoError(t, err)
	c := newTestClient(t, b)

	c.Tversion(styxproto.DefaultMaxSize, "9P2000")
	c.Flush()
	_, ok := c.next().(styxproto.Rversion)
	require.True(t, ok)

	attach(t, c)

	tag := c.nextTag()
	c.Twalk(tag, 1, 2, "hello.txt")
	c.Flush()
	rwalk, ok := c.next().(styxproto.Rwalk)
	require.True(t, ok)
	require.Equal(t, 1, len(rwalkQids(rwalk)))

	tag = c.nextTag()
	c.Topen(tag, 2, 0)
	c.Flush()
	ropen, ok := c.next().(styxproto.Ropen)
	require.True(t, ok)
	_ = ropen

	tag = c.nextTag()
	c.Tread(tag, 2, 0, 1024)
	c.Flush()
	rread, ok := c.next().(styxproto.Rread)
	require.True(t, ok)
	require.Equal(t, "hi there", string(rread.Data()))
}

func TestCreateAndWrite(t *testing.T) {
	dir := t.TempDir()

	b, err := New(Config{Root: dir})
	require.NoError(t, err)
	c := newTestClient(t, b)

	c.Tversion(styxproto.DefaultMaxSize, "9P2000")
	c.Flush()
	c.next()
	attach(t, c)

	tag := c.nextTag()
	c.Tcreate(tag, 1, "new.txt", 0644, 1) // OWRITE
	c.Flush()
	_, ok := c.next().(styxproto.Rcreate)
	require.True(t, ok)

	tag = c.nextTag()
	c.Twrite(tag, 1, 0, []byte("payload"))
	c.Flush()
	rwrite, ok := c.next().(styxproto.Rwrite)
	require.True(t, ok)
	require.EqualValues(t, len("payload"), rwrite.Count())

	data, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestReadOnlyRejectsCreate(t *testing.T) {
	dir := t.TempDir()

	b, err := New(Config{Root: dir, ReadOnly: true})
	require.NoError(t, err)
	c := newTestClient(t, b)

	c.Tversion(styxproto.DefaultMaxSize, "9P2000")
	c.Flush()
	c.next()
	attach(t, c)

	tag := c.nextTag()
	c.Tcreate(tag, 1, "new.txt", 0644, 1)
	c.Flush()
	_, ok := c.next().(styxproto.Rerror)
	require.True(t, ok, "expected Rerror for create in read-only mode")
}

func TestReadOnlyRejectsOpenTrunc(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("untouched"), 0644))

	b, err := New(Config{Root: dir, ReadOnly: true})
	require.NoError(t, err)
	c := newTestClient(t, b)

	c.Tversion(styxproto.DefaultMaxSize, "9P2000")
	c.Flush()
	c.next()
	attach(t, c)

	tag := c.nextTag()
	c.Twalk(tag, 1, 2, "keep.txt")
	c.Flush()
	_, ok := c.next().(styxproto.Rwalk)
	require.True(t, ok)

	// OREAD|OTRUNC must be rejected by the read-only gate even though
	// its low two mode bits ask only for read access.
	tag = c.nextTag()
	c.Topen(tag, 2, styxproto.OREAD|styxproto.OTRUNC)
	c.Flush()
	_, ok = c.next().(styxproto.Rerror)
	require.True(t, ok, "expected Rerror for OREAD|OTRUNC open in read-only mode")

	data, err := os.ReadFile(filepath.Join(dir, "keep.txt"))
	require.NoError(t, err)
	require.Equal(t, "untouched", string(data))
}

func rwalkQids(m styxproto.Rwalk) []styxproto.Qid {
	var qids []styxproto.Qid
	for i := 0; i < m.Nwqid(); i++ {
		qids = append(qids, m.Wqid(i))
	}
	return qids
}
