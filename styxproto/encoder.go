package styxproto

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// An Encoder writes 9P messages to an underlying io.Writer. An
// Encoder is safe to use from multiple goroutines: whole messages are
// serialized before being handed to the underlying writer, under a
// lock, so writes from concurrent requests are never interleaved.
type Encoder struct {
	mu  sync.Mutex
	w   *bufio.Writer
	err error
}

// NewEncoder creates a new Encoder that writes 9P messages to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriterSize(w, MinBufSize)}
}

// Err returns the first error encountered by the Encoder when writing
// to its underlying io.Writer.
func (enc *Encoder) Err() error {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	return enc.err
}

// Flush writes any buffered data to the underlying io.Writer.
func (enc *Encoder) Flush() error {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	if enc.err != nil {
		return enc.err
	}
	return enc.w.Flush()
}

func (enc *Encoder) write(b []byte) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(b)
}

// header allocates a message of the given total size and fills in
// the size[4] type[1] tag[2] fields common to every 9P message.
func header(size int, mtype uint8, tag uint16) []byte {
	b := make([]byte, size)
	buint32(b[0:4], uint32(size))
	b[4] = mtype
	buint16(b[5:7], tag)
	return b
}

// putString writes a 2-byte length-prefixed string at b[off:] and
// returns the offset immediately after it.
func putString(b []byte, off int, s string) int {
	buint16(b[off:off+2], uint16(len(s)))
	copy(b[off+2:], s)
	return off + 2 + len(s)
}

// putBytes writes a 2-byte length-prefixed byte string at b[off:] and
// returns the offset immediately after it.
func putBytes(b []byte, off int, p []byte) int {
	buint16(b[off:off+2], uint16(len(p)))
	copy(b[off+2:], p)
	return off + 2 + len(p)
}

// Tversion writes a Tversion message. Its tag is always NoTag.
func (enc *Encoder) Tversion(msize uint32, version string) {
	b := header(7+4+2+len(version), msgTversion, NoTag)
	buint32(b[7:11], msize)
	putString(b, 11, version)
	enc.write(b)
}

// Rversion writes an Rversion message.
func (enc *Encoder) Rversion(msize uint32, version string) {
	b := header(7+4+2+len(version), msgRversion, NoTag)
	buint32(b[7:11], msize)
	putString(b, 11, version)
	enc.write(b)
}

// Tauth writes a Tauth message.
func (enc *Encoder) Tauth(tag uint16, afid uint32, uname, aname string) {
	b := header(7+4+2+len(uname)+2+len(aname), msgTauth, tag)
	buint32(b[7:11], afid)
	off := putString(b, 11, uname)
	putString(b, off, aname)
	enc.write(b)
}

// Rauth writes an Rauth message.
func (enc *Encoder) Rauth(tag uint16, aqid Qid) {
	b := header(7+QidLen, msgRauth, tag)
	copy(b[7:7+QidLen], aqid[:QidLen])
	enc.write(b)
}

// Tattach writes a Tattach message.
func (enc *Encoder) Tattach(tag uint16, fid, afid uint32, uname, aname string) {
	b := header(7+4+4+2+len(uname)+2+len(aname), msgTattach, tag)
	buint32(b[7:11], fid)
	buint32(b[11:15], afid)
	off := putString(b, 15, uname)
	putString(b, off, aname)
	enc.write(b)
}

// Rattach writes an Rattach message.
func (enc *Encoder) Rattach(tag uint16, qid Qid) {
	b := header(7+QidLen, msgRattach, tag)
	copy(b[7:7+QidLen], qid[:QidLen])
	enc.write(b)
}

// Rerror writes an Rerror message. The error text is produced with
// fmt.Sprintf(format, args...), and truncated to MaxErrorLen bytes.
func (enc *Encoder) Rerror(tag uint16, format string, args ...interface{}) {
	ename := fmt.Sprintf(format, args...)
	if len(ename) > MaxErrorLen {
		ename = ename[:MaxErrorLen]
	}
	b := header(7+2+len(ename), msgRerror, tag)
	putString(b, 7, ename)
	enc.write(b)
}

// Tflush writes a Tflush message.
func (enc *Encoder) Tflush(tag, oldtag uint16) {
	b := header(7+2, msgTflush, tag)
	buint16(b[7:9], oldtag)
	enc.write(b)
}

// Rflush writes an Rflush message.
func (enc *Encoder) Rflush(tag uint16) {
	enc.write(header(7, msgRflush, tag))
}

// Twalk writes a Twalk message.
func (enc *Encoder) Twalk(tag uint16, fid, newfid uint32, wname ...string) {
	size := 7 + 4 + 4 + 2
	for _, s := range wname {
		size += 2 + len(s)
	}
	b := header(size, msgTwalk, tag)
	buint32(b[7:11], fid)
	buint32(b[11:15], newfid)
	buint16(b[15:17], uint16(len(wname)))
	off := 17
	for _, s := range wname {
		off = putString(b, off, s)
	}
	enc.write(b)
}

// Rwalk writes an Rwalk message.
func (enc *Encoder) Rwalk(tag uint16, wqid ...Qid) {
	b := header(7+2+len(wqid)*QidLen, msgRwalk, tag)
	buint16(b[7:9], uint16(len(wqid)))
	off := 9
	for _, q := range wqid {
		copy(b[off:off+QidLen], q[:QidLen])
		off += QidLen
	}
	enc.write(b)
}

// Topen writes a Topen message.
func (enc *Encoder) Topen(tag uint16, fid uint32, mode uint8) {
	b := header(7+4+1, msgTopen, tag)
	buint32(b[7:11], fid)
	b[11] = mode
	enc.write(b)
}

// Ropen writes an Ropen message.
func (enc *Encoder) Ropen(tag uint16, qid Qid, iounit uint32) {
	b := header(7+QidLen+4, msgRopen, tag)
	copy(b[7:7+QidLen], qid[:QidLen])
	buint32(b[7+QidLen:11+QidLen], iounit)
	enc.write(b)
}

// Tcreate writes a Tcreate message.
func (enc *Encoder) Tcreate(tag uint16, fid uint32, name string, perm uint32, mode uint8) {
	b := header(7+4+2+len(name)+4+1, msgTcreate, tag)
	buint32(b[7:11], fid)
	off := putString(b, 11, name)
	buint32(b[off:off+4], perm)
	b[off+4] = mode
	enc.write(b)
}

// Rcreate writes an Rcreate message.
func (enc *Encoder) Rcreate(tag uint16, qid Qid, iounit uint32) {
	b := header(7+QidLen+4, msgRcreate, tag)
	copy(b[7:7+QidLen], qid[:QidLen])
	buint32(b[7+QidLen:11+QidLen], iounit)
	enc.write(b)
}

// Tread writes a Tread message.
func (enc *Encoder) Tread(tag uint16, fid uint32, offset int64, count uint32) {
	b := header(7+4+8+4, msgTread, tag)
	buint32(b[7:11], fid)
	buint64(b[11:19], uint64(offset))
	buint32(b[19:23], count)
	enc.write(b)
}

// Rread writes an Rread message carrying data.
func (enc *Encoder) Rread(tag uint16, data []byte) {
	b := header(7+4+len(data), msgRread, tag)
	buint32(b[7:11], uint32(len(data)))
	copy(b[11:], data)
	enc.write(b)
}

// Twrite writes a Twrite message carrying data.
func (enc *Encoder) Twrite(tag uint16, fid uint32, offset int64, data []byte) {
	b := header(7+4+8+4+len(data), msgTwrite, tag)
	buint32(b[7:11], fid)
	buint64(b[11:19], uint64(offset))
	buint32(b[19:23], uint32(len(data)))
	copy(b[23:], data)
	enc.write(b)
}

// Rwrite writes an Rwrite message.
func (enc *Encoder) Rwrite(tag uint16, count uint32) {
	b := header(7+4, msgRwrite, tag)
	buint32(b[7:11], count)
	enc.write(b)
}

// Tclunk writes a Tclunk message.
func (enc *Encoder) Tclunk(tag uint16, fid uint32) {
	b := header(7+4, msgTclunk, tag)
	buint32(b[7:11], fid)
	enc.write(b)
}

// Rclunk writes an Rclunk message.
func (enc *Encoder) Rclunk(tag uint16) {
	enc.write(header(7, msgRclunk, tag))
}

// Tremove writes a Tremove message.
func (enc *Encoder) Tremove(tag uint16, fid uint32) {
	b := header(7+4, msgTremove, tag)
	buint32(b[7:11], fid)
	enc.write(b)
}

// Rremove writes an Rremove message.
func (enc *Encoder) Rremove(tag uint16) {
	enc.write(header(7, msgRremove, tag))
}

// Tstat writes a Tstat message.
func (enc *Encoder) Tstat(tag uint16, fid uint32) {
	b := header(7+4, msgTstat, tag)
	buint32(b[7:11], fid)
	enc.write(b)
}

// Rstat writes an Rstat message.
func (enc *Encoder) Rstat(tag uint16, stat Stat) {
	b := header(7+2+len(stat), msgRstat, tag)
	putBytes(b, 7, stat)
	enc.write(b)
}

// Twstat writes a Twstat message.
func (enc *Encoder) Twstat(tag uint16, fid uint32, stat Stat) {
	b := header(7+4+2+len(stat), msgTwstat, tag)
	buint32(b[7:11], fid)
	putBytes(b, 11, stat)
	enc.write(b)
}

// Rwstat writes an Rwstat message.
func (enc *Encoder) Rwstat(tag uint16) {
	enc.write(header(7, msgRwstat, tag))
}
