package styxproto

import (
	"bytes"
	"fmt"
)

// This package does not unmarshal messages into structures.
// Instead, they are kept as-is and fields are parsed on-demand
// via methods. The msg helper type is used to access fields
// common to all 9P messages. A msg always includes the leading
// size[4] field of the message it wraps, so the first field
// after the tag begins at offset 7 (size[4] type[1] tag[2]).
type msg []byte

func (m msg) Type() uint8  { return m[4] }
func (m msg) Tag() uint16  { return guint16(m[5:7]) }
func (m msg) Body() []byte { return m[7:] }

// In the 9P protocol, the first field, size[4], counts the
// whole message, including the four bytes of size[4] itself.
// The byte slices we wrap our types around also contain the
// size[4] header, so the size[4] field equals len(m).
func (m msg) Len() int64 { return int64(guint32(m[:4])) }

// Calling nthField on a message that has not been verified
// can result in a run-time panic if the size headers are
// incorrect.
func (m msg) nthField(offset, n int) []byte {
	size := int(guint16(m[offset : offset+2]))
	for i := 0; i < n; i++ {
		offset += size + 2
		size = int(guint16(m[offset : offset+2]))
	}
	return m[offset+2 : offset+2+size]
}

// A Msg is a 9P message. 9P messages are sent by clients (T-messages)
// and servers (R-messages).
type Msg interface {
	// Tag is a transaction identifier. No two pending T-messages may
	// use the same tag. All R-messages must reference the T-message
	// being answered by using the same tag.
	Tag() uint16

	// Len returns the total length of the message in bytes.
	Len() int64
}

// The version request negotiates the protocol version and message
// size to be used on the connection and initializes the connection
// for I/O.  Tversion must be the first message sent on the 9P connection,
// and the client cannot issue any further requests until it has
// received the Rversion reply.
type Tversion []byte

// For version messages, Tag should be NoTag.
func (m Tversion) Tag() uint16 { return msg(m).Tag() }
func (m Tversion) Len() int64  { return int64(len(m) - 4) }

// Msize returns the maximum length, in bytes, that the client will
// ever generate or expect to receive in a single 9P message.
func (m Tversion) Msize() int64 { return int64(guint32(m[7:11])) }

// Version identifies the level of the protocol that the client supports.
// The string must always begin with the two characters "9P".
func (m Tversion) Version() string { return string(msg(m).nthField(11, 0)) }
func (m Tversion) String() string {
	return fmt.Sprintf("Tversion msize=%d version=%q", m.Msize(), m.Version())
}

// An Rversion reply is sent in response to a Tversion request.
type Rversion []byte

func (m Rversion) Tag() uint16     { return msg(m).Tag() }
func (m Rversion) Len() int64      { return int64(len(m) - 4) }
func (m Rversion) Version() string { return string(msg(m).nthField(11, 0)) }
func (m Rversion) Msize() int64    { return int64(guint32(m[7:11])) }
func (m Rversion) String() string {
	return fmt.Sprintf("Rversion msize=%d version=%q", m.Msize(), m.Version())
}

// The Tauth message is used to authenticate users on a connection.
type Tauth []byte

func (m Tauth) Tag() uint16 { return msg(m).Tag() }
func (m Tauth) Len() int64  { return int64(len(m) - 4) }

// The afid of a Tauth message establishes an 'authentication file';
// after a Tauth message is accepted by the server, a client must carry
// out the authentication protocol by performing I/O operations on afid.
func (m Tauth) Afid() uint32 { return guint32(m[7:11]) }

// Uname contains the name of the user to authenticate.
func (m Tauth) Uname() []byte { return msg(m).nthField(11, 0) }

// Aname contains the name of the file tree to access. It may be empty.
func (m Tauth) Aname() []byte { return msg(m).nthField(11, 1) }

func (m Tauth) String() string {
	return fmt.Sprintf("Tauth afid=%x uname=%q aname=%q", m.Afid(), m.Uname(), m.Aname())
}

// Servers that require authentication reply to Tauth with an Rauth
// message. If a server does not require authentication, it replies
// to Tauth with an Rerror.
type Rauth []byte

func (m Rauth) Tag() uint16    { return msg(m).Tag() }
func (m Rauth) Len() int64     { return int64(len(m) - 4) }
func (m Rauth) Aqid() Qid      { return Qid(m[7 : 7+QidLen]) }
func (m Rauth) String() string { return fmt.Sprintf("Rauth aqid=%q", m.Aqid()) }

// The attach message serves as a fresh introduction from a user on
// the client machine to the server.
type Tattach []byte

func (m Tattach) Tag() uint16 { return msg(m).Tag() }
func (m Tattach) Len() int64  { return int64(len(m) - 4) }

// Fid establishes a fid to be used as the root of the file tree, should
// the client's Tattach request be accepted.
func (m Tattach) Fid() uint32 { return guint32(m[7:11]) }

// Afid, on servers that require authentication, must have been
// established in a previous Tauth request. If a client does not wish
// to authenticate, afid should be set to NoFid.
func (m Tattach) Afid() uint32 { return guint32(m[11:15]) }

// Uname is the user name of the attaching user.
func (m Tattach) Uname() []byte { return msg(m).nthField(15, 0) }

// Aname is the name of the file tree that the client wants to access.
func (m Tattach) Aname() []byte { return msg(m).nthField(15, 1) }

func (m Tattach) String() string {
	return fmt.Sprintf("Tattach fid=%x afid=%x uname=%q aname=%q",
		m.Fid(), m.Afid(), m.Uname(), m.Aname())
}

type Rattach []byte

func (m Rattach) Tag() uint16    { return msg(m).Tag() }
func (m Rattach) Len() int64     { return int64(len(m) - 4) }
func (m Rattach) Qid() Qid       { return Qid(m[7 : 7+QidLen]) }
func (m Rattach) String() string { return fmt.Sprintf("Rattach qid=%q", m.Qid()) }

type Rerror []byte

func (m Rerror) Tag() uint16 { return msg(m).Tag() }
func (m Rerror) Len() int64  { return int64(len(m) - 4) }

// Ename is a UTF-8 string describing the error that occurred.
func (m Rerror) Ename() []byte { return msg(m).nthField(7, 0) }

// Error implements the error interface.
func (m Rerror) Error() string  { return string(m.Ename()) }
func (m Rerror) String() string { return fmt.Sprintf("Rerror ename=%q", m.Ename()) }

type Tflush []byte

func (m Tflush) Tag() uint16    { return msg(m).Tag() }
func (m Tflush) Len() int64     { return int64(len(m) - 4) }
func (m Tflush) Oldtag() uint16 { return guint16(m[7:9]) }
func (m Tflush) String() string { return fmt.Sprintf("Tflush oldtag=%x", m.Oldtag()) }

type Rflush []byte

func (m Rflush) Tag() uint16    { return msg(m).Tag() }
func (m Rflush) Len() int64     { return int64(len(m) - 4) }
func (m Rflush) String() string { return "Rflush" }

type Twalk []byte

func (m Twalk) Tag() uint16        { return msg(m).Tag() }
func (m Twalk) Len() int64         { return int64(len(m) - 4) }
func (m Twalk) Fid() uint32        { return guint32(m[7:11]) }
func (m Twalk) Newfid() uint32     { return guint32(m[11:15]) }
func (m Twalk) Nwname() int        { return int(guint16(m[15:17])) }
func (m Twalk) Wname(n int) []byte { return msg(m).nthField(17, n) }
func (m Twalk) String() string {
	names := make([][]byte, m.Nwname())
	for i := 0; i < m.Nwname(); i++ {
		names[i] = m.Wname(i)
	}
	return fmt.Sprintf("Twalk fid=%x newfid=%x wname=%q",
		m.Fid(), m.Newfid(), bytes.Join(names, []byte("/")))
}

type Rwalk []byte

func (m Rwalk) Tag() uint16    { return msg(m).Tag() }
func (m Rwalk) Len() int64     { return int64(len(m) - 4) }
func (m Rwalk) Nwqid() int     { return int(guint16(m[7:9])) }
func (m Rwalk) Wqid(n int) Qid { return Qid(m[9+n*QidLen : 9+(n+1)*QidLen]) }
func (m Rwalk) String() string {
	wqid := make([][]byte, m.Nwqid())
	for i := 0; i < m.Nwqid(); i++ {
		wqid[i] = m.Wqid(i)
	}
	return fmt.Sprintf("Rwalk wqid=%q", bytes.Join(wqid, []byte(",")))
}

type Topen []byte

func (m Topen) Tag() uint16 { return msg(m).Tag() }
func (m Topen) Len() int64  { return int64(len(m) - 4) }
func (m Topen) Fid() uint32 { return guint32(m[7:11]) }
func (m Topen) Mode() uint8 { return m[11] }
func (m Topen) String() string {
	return fmt.Sprintf("Topen fid=%x mode=%#o", m.Fid(), m.Mode())
}

type Ropen []byte

func (m Ropen) Tag() uint16   { return msg(m).Tag() }
func (m Ropen) Len() int64    { return int64(len(m) - 4) }
func (m Ropen) Qid() Qid      { return Qid(m[7 : 7+QidLen]) }
func (m Ropen) IOunit() int64 { return int64(guint32(m[7+QidLen : 11+QidLen])) }
func (m Ropen) String() string {
	return fmt.Sprintf("Ropen qid=%q iounit=%d", m.Qid(), m.IOunit())
}

type Tcreate []byte

func (m Tcreate) Tag() uint16  { return msg(m).Tag() }
func (m Tcreate) Len() int64   { return int64(len(m) - 4) }
func (m Tcreate) Fid() uint32  { return guint32(m[7:11]) }
func (m Tcreate) Name() []byte { return msg(m).nthField(11, 0) }
func (m Tcreate) Perm() uint32 {
	offset := 11 + 2 + len(m.Name())
	return guint32(m[offset : offset+4])
}
func (m Tcreate) Mode() uint8 {
	offset := 11 + 2 + len(m.Name()) + 4
	return m[offset]
}
func (m Tcreate) String() string {
	return fmt.Sprintf("Tcreate fid=%x name=%q perm=%o mode=%#o",
		m.Fid(), m.Name(), m.Perm(), m.Mode())
}

type Rcreate []byte

func (m Rcreate) Tag() uint16   { return msg(m).Tag() }
func (m Rcreate) Len() int64    { return int64(len(m) - 4) }
func (m Rcreate) Qid() Qid      { return Qid(m[7 : 7+QidLen]) }
func (m Rcreate) IOunit() int64 { return int64(guint32(m[7+QidLen : 11+QidLen])) }
func (m Rcreate) String() string {
	return fmt.Sprintf("Rcreate qid=%q iounit=%d", m.Qid(), m.IOunit())
}

type Tread []byte

func (m Tread) Tag() uint16   { return msg(m).Tag() }
func (m Tread) Len() int64    { return int64(len(m) - 4) }
func (m Tread) Fid() uint32   { return guint32(m[7:11]) }
func (m Tread) Offset() int64 { return int64(guint64(m[11:19])) }
func (m Tread) Count() uint32 { return guint32(m[19:23]) }
func (m Tread) String() string {
	return fmt.Sprintf("Tread fid=%x offset=%d count=%d", m.Fid(), m.Offset(), m.Count())
}

// Rread returns the bytes requested by a Tread message.
type Rread []byte

func (m Rread) Tag() uint16   { return msg(m).Tag() }
func (m Rread) Len() int64    { return int64(len(m) - 4) }
func (m Rread) Count() uint32 { return guint32(m[7:11]) }
func (m Rread) Data() []byte  { return m[11 : 11+m.Count()] }
func (m Rread) String() string {
	return fmt.Sprintf("Rread count=%d", m.Count())
}

// Twrite is sent by a client to write data to a file.
type Twrite []byte

func (m Twrite) Tag() uint16   { return msg(m).Tag() }
func (m Twrite) Len() int64    { return int64(len(m) - 4) }
func (m Twrite) Fid() uint32   { return guint32(m[7:11]) }
func (m Twrite) Offset() int64 { return int64(guint64(m[11:19])) }
func (m Twrite) Count() uint32 { return guint32(m[19:23]) }
func (m Twrite) Data() []byte  { return m[23 : 23+m.Count()] }
func (m Twrite) String() string {
	return fmt.Sprintf("Twrite fid=%x offset=%d count=%d",
		m.Fid(), m.Offset(), m.Count())
}

type Rwrite []byte

func (m Rwrite) Tag() uint16   { return msg(m).Tag() }
func (m Rwrite) Len() int64    { return int64(len(m) - 4) }
func (m Rwrite) Count() uint32 { return guint32(m[7:11]) }
func (m Rwrite) String() string {
	return fmt.Sprintf("Rwrite count=%d", m.Count())
}

type Tclunk []byte

func (m Tclunk) Tag() uint16    { return msg(m).Tag() }
func (m Tclunk) Len() int64     { return int64(len(m) - 4) }
func (m Tclunk) Fid() uint32    { return guint32(m[7:11]) }
func (m Tclunk) String() string { return fmt.Sprintf("Tclunk fid=%x", m.Fid()) }

type Rclunk []byte

func (m Rclunk) Tag() uint16    { return msg(m).Tag() }
func (m Rclunk) Len() int64     { return int64(len(m) - 4) }
func (m Rclunk) String() string { return "Rclunk" }

type Tremove []byte

func (m Tremove) Tag() uint16    { return msg(m).Tag() }
func (m Tremove) Len() int64     { return int64(len(m) - 4) }
func (m Tremove) Fid() uint32    { return guint32(m[7:11]) }
func (m Tremove) String() string { return fmt.Sprintf("Tremove fid=%x", m.Fid()) }

type Rremove []byte

func (m Rremove) Tag() uint16    { return msg(m).Tag() }
func (m Rremove) Len() int64     { return int64(len(m) - 4) }
func (m Rremove) String() string { return "Rremove" }

type Tstat []byte

func (m Tstat) Tag() uint16    { return msg(m).Tag() }
func (m Tstat) Len() int64     { return int64(len(m) - 4) }
func (m Tstat) Fid() uint32    { return guint32(m[7:11]) }
func (m Tstat) String() string { return fmt.Sprintf("Tstat fid=%x", m.Fid()) }

type Rstat []byte

func (m Rstat) Tag() uint16    { return msg(m).Tag() }
func (m Rstat) Len() int64     { return int64(len(m) - 4) }
func (m Rstat) Stat() Stat     { return Stat(msg(m).nthField(7, 0)) }
func (m Rstat) String() string { return "Rstat " + m.Stat().String() }

type Twstat []byte

func (m Twstat) Tag() uint16    { return msg(m).Tag() }
func (m Twstat) Len() int64     { return int64(len(m) - 4) }
func (m Twstat) Fid() uint32    { return guint32(m[7:11]) }
func (m Twstat) Stat() Stat     { return Stat(msg(m).nthField(11, 0)) }
func (m Twstat) String() string { return fmt.Sprintf("Twstat fid=%x stat=%q", m.Fid(), m.Stat()) }

type Rwstat []byte

func (m Rwstat) Tag() uint16    { return msg(m).Tag() }
func (m Rwstat) Len() int64     { return int64(len(m) - 4) }
func (m Rwstat) String() string { return "Rwstat" }

// Bytes returns the raw, wire-format bytes of m, including the size[4]
// header. It is used by the tracing package to relay messages without
// re-encoding them.
func Bytes(m Msg) []byte {
	switch v := m.(type) {
	case Tversion:
		return []byte(v)
	case Rversion:
		return []byte(v)
	case Tauth:
		return []byte(v)
	case Rauth:
		return []byte(v)
	case Tattach:
		return []byte(v)
	case Rattach:
		return []byte(v)
	case Rerror:
		return []byte(v)
	case Tflush:
		return []byte(v)
	case Rflush:
		return []byte(v)
	case Twalk:
		return []byte(v)
	case Rwalk:
		return []byte(v)
	case Topen:
		return []byte(v)
	case Ropen:
		return []byte(v)
	case Tcreate:
		return []byte(v)
	case Rcreate:
		return []byte(v)
	case Tread:
		return []byte(v)
	case Rread:
		return []byte(v)
	case Twrite:
		return []byte(v)
	case Rwrite:
		return []byte(v)
	case Tclunk:
		return []byte(v)
	case Rclunk:
		return []byte(v)
	case Tremove:
		return []byte(v)
	case Rremove:
		return []byte(v)
	case Tstat:
		return []byte(v)
	case Rstat:
		return []byte(v)
	case Twstat:
		return []byte(v)
	case Rwstat:
		return []byte(v)
	case BadMessage:
		return []byte(v.raw)
	}
	return nil
}

// BadMessage represents an invalid message.
type BadMessage struct {
	Err error  // the reason the message is invalid
	tag uint16 // the tag of the errant message
	raw msg
}

// Tag returns the tag of the errant message. Servers should cite the
// same tag when replying with an Rerror message.
func (m BadMessage) Tag() uint16 { return m.tag }
func (m BadMessage) Len() int64  { return m.raw.Len() }
func (m BadMessage) String() string {
	return fmt.Sprintf("bad message: %s", m.Err)
}
