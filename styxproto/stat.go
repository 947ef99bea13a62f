package styxproto

import (
	"fmt"
)

// The Stat structure describes a directory entry. It is contained in
// Rstat and Twstat messages. Tread requests on directories return
// a Stat structure for each directory entry.
//
// size[2] type[2] dev[4] qid[13] mode[4] atime[4] mtime[4] length[8]
// name[s] uid[s] gid[s] muid[s]
type Stat []byte

// NewStat writes a new Stat structure to the front of buf, filling in
// the name, uid, gid and muid fields and zeroing the rest. It returns
// the Stat and the remainder of buf.
func NewStat(buf []byte, name, uid, gid, muid string) (Stat, []byte, error) {
	need := minStatLen + len(name) + len(uid) + len(gid) + len(muid)
	if len(buf) < need {
		return nil, buf, errLongStat
	}
	b := buf[:need]
	for i := range b[:41] {
		b[i] = 0
	}
	rest := b[41:]
	rest = pname(rest, name)
	rest = pname(rest, uid)
	rest = pname(rest, gid)
	pname(rest, muid)
	buint16(b[0:2], uint16(need-2))
	return Stat(b), buf[need:], nil
}

func pname(b []byte, s string) []byte {
	buint16(b[0:2], uint16(len(s)))
	copy(b[2:], s)
	return b[2+len(s):]
}

// Size returns the length (in bytes) of the stat structure, minus the
// two-byte size field itself.
func (s Stat) Size() uint16 { return guint16(s[0:2]) }

// The 2-byte type field contains implementation-specific data
// that is outside the scope of the 9P protocol.
func (s Stat) Type() uint16 { return guint16(s[2:4]) }

// SetType overwrites the type field of s.
func (s Stat) SetType(t uint16) { buint16(s[2:4], t) }

// The 4-byte dev field contains implementation-specific data
// that is outside the scope of the 9P protocol. In Plan 9, it holds
// an identifier for the block device that stores the file.
func (s Stat) Dev() uint32 { return guint32(s[4:8]) }

// SetDev overwrites the dev field of s.
func (s Stat) SetDev(dev uint32) { buint32(s[4:8], dev) }

// Qid returns the unique identifier of the file.
func (s Stat) Qid() Qid { return Qid(s[8:21]) }

// SetQid overwrites the qid field of s.
func (s Stat) SetQid(q Qid) { copy(s[8:21], q[:QidLen]) }

// Mode contains the permissions and flags set for the file.
// Permissions follow the unix model; the 3 least-significant
// 3-bit triads describe read, write, and execute access for
// owners, group members, and other users, respectively.
func (s Stat) Mode() uint32 { return guint32(s[21:25]) }

// SetMode overwrites the mode field of s.
func (s Stat) SetMode(mode uint32) { buint32(s[21:25], mode) }

// Atime returns the last access time for the file, in seconds since the epoch.
func (s Stat) Atime() uint32 { return guint32(s[25:29]) }

// SetAtime overwrites the atime field of s.
func (s Stat) SetAtime(v uint32) { buint32(s[25:29], v) }

// Mtime returns the last time the file was modified, in seconds since the epoch.
func (s Stat) Mtime() uint32 { return guint32(s[29:33]) }

// SetMtime overwrites the mtime field of s.
func (s Stat) SetMtime(v uint32) { buint32(s[29:33], v) }

// Length returns the length of the file in bytes.
func (s Stat) Length() int64 { return int64(guint64(s[33:41])) }

// SetLength overwrites the length field of s.
func (s Stat) SetLength(n int64) { buint64(s[33:41], uint64(n)) }

// Name returns the name of the file.
func (s Stat) Name() []byte { return msg(s).nthField(41, 0) }

// Uid returns the name of the owner of the file.
func (s Stat) Uid() []byte { return msg(s).nthField(41, 1) }

// Gid returns the group of the file.
func (s Stat) Gid() []byte { return msg(s).nthField(41, 2) }

// Muid returns the name of the user who last modified the file.
func (s Stat) Muid() []byte { return msg(s).nthField(41, 3) }

func (s Stat) String() string {
	return fmt.Sprintf("type=%x dev=%x qid=%q mode=%o atime=%d mtime=%d "+
		"length=%d name=%q uid=%q gid=%q muid=%q", s.Type(), s.Dev(), s.Qid(),
		s.Mode(), s.Atime(), s.Mtime(), s.Length(), s.Name(), s.Uid(),
		s.Gid(), s.Muid())
}

// verifyStat ensures that a Stat structure received from a client is
// well-formed before any of its fields are trusted.
func verifyStat(data []byte) error {
	if len(data) < minStatLen {
		return errShortStat
	} else if len(data) > maxStatLen {
		return errLongStat
	}
	rest := data[41:]
	for _, max := range [...]int{MaxFilenameLen, MaxUidLen, MaxUidLen, MaxUidLen} {
		field, next, err := verifyField(rest, false, 0)
		if err != nil {
			return err
		} else if err := verifyString(field); err != nil {
			return err
		} else if len(field) > max {
			return errLongFilename
		}
		rest = next
	}
	// A 9P2000.u stat carries n_uid[4] n_gid[4] n_muid[4] after muid.
	if len(rest) != 0 && len(rest) != 12 {
		return errLongStat
	}
	return nil
}

func verifyField(data []byte, last bool, pad int) (field, rest []byte, err error) {
	if len(data) < 2 {
		return nil, nil, errShortStat
	}
	n := int(guint16(data[:2]))
	if n+2 > len(data) {
		return nil, nil, errOverSize
	}
	field = data[2 : 2+n]
	rest = data[2+n:]
	if last && len(rest) != pad {
		return nil, nil, errLongStat
	}
	return field, rest, nil
}
