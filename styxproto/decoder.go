package styxproto

import (
	"bufio"
	"encoding/binary"
	"io"
)

// A Decoder reads a stream of 9P messages from an io.Reader.
// Successive calls to Next fetch and validate 9P messages from the
// input stream, until EOF or another error is encountered.
//
// Unlike a streaming parser, a Decoder reads each message fully into
// memory before making it available; this keeps the message types in
// this package simple []byte views, at the cost of buffering an
// entire message (bounded by MaxSize) at a time. This mirrors how
// smaller 9P libraries such as go9p frame messages, and is adequate
// for a file server, where message bodies are bounded by the
// negotiated msize.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	// MaxSize is the largest message a Decoder will accept. Messages
	// larger than MaxSize cause Next to return false and Err to
	// report ErrMaxSize.
	MaxSize int64

	r   *bufio.Reader
	msg Msg
	err error
}

// NewDecoder returns a Decoder with an internal buffer of
// DefaultBufSize bytes.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, DefaultBufSize)
}

// NewDecoderSize returns a Decoder whose internal bufio.Reader has at
// least bufsize bytes of buffer space.
func NewDecoderSize(r io.Reader, bufsize int) *Decoder {
	if bufsize < MinBufSize {
		bufsize = MinBufSize
	}
	return &Decoder{
		MaxSize: -1,
		r:       bufio.NewReaderSize(r, bufsize),
	}
}

// Reset discards any buffered data and configures the Decoder to read
// from r.
func (d *Decoder) Reset(r io.Reader) {
	d.r.Reset(r)
	d.msg = nil
	d.err = nil
}

// Err returns the first error encountered while reading from the
// underlying io.Reader. io.EOF is not reported by Err.
func (d *Decoder) Err() error {
	if d.err == io.EOF {
		return nil
	}
	return d.err
}

// Msg returns the most recently decoded message. It is only valid
// until the next call to Next.
func (d *Decoder) Msg() Msg { return d.msg }

// Next fetches the next 9P message from the underlying io.Reader.
// Malformed messages are surfaced as a BadMessage value rather than
// as an error. Next returns false when the underlying stream fails
// or is exhausted, or when a message's size field is smaller than
// the smallest 9P message or larger than MaxSize.
func (d *Decoder) Next() bool {
	if d.err != nil {
		d.msg = nil
		return false
	}
	var header [7]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		d.err = err
		d.msg = nil
		return false
	}
	size := binary.LittleEndian.Uint32(header[:4])
	if size < minMsgSize {
		d.err = errTooSmall
		d.msg = nil
		return false
	}
	max := d.MaxSize
	if max <= 0 {
		max = int64(DefaultMaxSize)
	}
	if int64(size) > max {
		d.err = ErrMaxSize
		d.msg = nil
		return false
	}
	buf := make([]byte, size)
	copy(buf, header[:])
	if _, err := io.ReadFull(d.r, buf[7:]); err != nil {
		d.err = err
		d.msg = nil
		return false
	}
	d.msg = parseMsg(buf)
	return true
}

// parseMsg wraps a fully-buffered, size-correct message in the Msg
// implementation appropriate for its type, or a BadMessage if it does
// not pass validation.
func parseMsg(buf []byte) Msg {
	t := msg(buf).Type()
	tag := msg(buf).Tag()
	if err := verifySizeAndType(buf, t); err != nil {
		return BadMessage{Err: err, tag: tag, raw: msg(buf)}
	}
	switch t {
	case msgTversion:
		return Tversion(buf)
	case msgRversion:
		return Rversion(buf)
	case msgTauth:
		return Tauth(buf)
	case msgRauth:
		return Rauth(buf)
	case msgTattach:
		return Tattach(buf)
	case msgRattach:
		return Rattach(buf)
	case msgRerror:
		return Rerror(buf)
	case msgTflush:
		return Tflush(buf)
	case msgRflush:
		return Rflush(buf)
	case msgTwalk:
		if err := verifyWalk(buf); err != nil {
			return BadMessage{Err: err, tag: tag, raw: msg(buf)}
		}
		return Twalk(buf)
	case msgRwalk:
		return Rwalk(buf)
	case msgTopen:
		return Topen(buf)
	case msgRopen:
		return Ropen(buf)
	case msgTcreate:
		if err := verifyName(Tcreate(buf).Name()); err != nil {
			return BadMessage{Err: err, tag: tag, raw: msg(buf)}
		}
		return Tcreate(buf)
	case msgRcreate:
		return Rcreate(buf)
	case msgTread:
		return Tread(buf)
	case msgRread:
		return Rread(buf)
	case msgTwrite:
		return Twrite(buf)
	case msgRwrite:
		return Rwrite(buf)
	case msgTclunk:
		return Tclunk(buf)
	case msgRclunk:
		return Rclunk(buf)
	case msgTremove:
		return Tremove(buf)
	case msgRremove:
		return Rremove(buf)
	case msgTstat:
		return Tstat(buf)
	case msgRstat:
		if err := verifyStat(Rstat(buf).Stat()); err != nil {
			return BadMessage{Err: err, tag: tag, raw: msg(buf)}
		}
		return Rstat(buf)
	case msgTwstat:
		if err := verifyStat(Twstat(buf).Stat()); err != nil {
			return BadMessage{Err: err, tag: tag, raw: msg(buf)}
		}
		return Twstat(buf)
	case msgRwstat:
		return Rwstat(buf)
	}
	return BadMessage{Err: errInvalidMsgType, tag: tag, raw: msg(buf)}
}

func verifySizeAndType(buf []byte, t uint8) error {
	if int(t) >= len(minSizeLUT) {
		return errInvalidMsgType
	}
	min := int64(minSizeLUT[t]) + 4
	if msg(buf).Len() < min {
		return errTooSmall
	}
	return nil
}

func verifyWalk(buf []byte) error {
	m := Twalk(buf)
	if m.Nwname() > MaxWElem {
		return errMaxWElem
	}
	for i := 0; i < m.Nwname(); i++ {
		if err := verifyName(m.Wname(i)); err != nil {
			return err
		}
	}
	return nil
}

func verifyName(name []byte) error {
	if len(name) > MaxFilenameLen {
		return errLongFilename
	}
	return verifyPathElem(name)
}
