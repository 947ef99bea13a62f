package styxproto

// 9P2000.u extends 9P2000 with numeric identity fields, so a client
// that does not have a name for its uid (or a server with no shared
// user database) can still be authenticated and own files. The
// extension fields are appended to the end of the base 9P2000
// messages; a receiver can tell whether they are present by comparing
// the message length to the 9P2000 minimum for that message type.

// Nuname returns the n_uname field appended to a Tattach message by a
// 9P2000.u client: the numeric uid of the attaching user, used when
// the client has no user name for uid, or the server has no shared
// user database to resolve uname against. ok is false if the message
// is a plain 9P2000 Tattach with no numeric uid attached.
func (m Tattach) Nuname() (n uint32, ok bool) {
	base := 15 + 2 + len(m.Uname()) + 2 + len(m.Aname())
	if len(m) != base+4 {
		return 0, false
	}
	return guint32(m[base : base+4]), true
}

// Nuid, Ngid and Nmuid return the numeric identity fields a 9P2000.u
// Stat structure appends after muid: n_uid[4] n_gid[4] n_muid[4]. ok
// is false if s is a plain 9P2000 Stat with no numeric fields.
func (s Stat) dotuOffset() (int, bool) {
	base := 41
	for i := 0; i < 4; i++ {
		f := msg(s).nthField(base, 0)
		base += 2 + len(f)
	}
	if len(s) != base+12 {
		return 0, false
	}
	return base, true
}

func (s Stat) Nuid() (uint32, bool) {
	off, ok := s.dotuOffset()
	if !ok {
		return NoUid, false
	}
	return guint32(s[off : off+4]), true
}

func (s Stat) Ngid() (uint32, bool) {
	off, ok := s.dotuOffset()
	if !ok {
		return NoUid, false
	}
	return guint32(s[off+4 : off+8]), true
}

func (s Stat) Nmuid() (uint32, bool) {
	off, ok := s.dotuOffset()
	if !ok {
		return NoUid, false
	}
	return guint32(s[off+8 : off+12]), true
}

// NoUid is used as the value of a 9P2000.u numeric identity field
// when no numeric id is known or applicable.
const NoUid uint32 = 1<<32 - 1

// NewStatu writes a new 9P2000.u Stat structure to the front of buf,
// filling in the name, uid, gid, muid fields and their numeric
// equivalents. It returns the Stat and the remainder of buf.
func NewStatu(buf []byte, name, uid, gid, muid string, nuid, ngid, nmuid uint32) (Stat, []byte, error) {
	stat, _, err := NewStat(buf, name, uid, gid, muid)
	if err != nil {
		return nil, buf, err
	}
	need := len(stat) + 12
	if len(buf) < need {
		return nil, buf, errLongStat
	}
	b := buf[:need]
	buint32(b[len(stat):len(stat)+4], nuid)
	buint32(b[len(stat)+4:len(stat)+8], ngid)
	buint32(b[len(stat)+8:len(stat)+12], nmuid)
	buint16(b[0:2], uint16(need-2))
	return Stat(b), buf[need:], nil
}

// Tattachu writes a Tattach message carrying a 9P2000.u numeric uid.
func (enc *Encoder) Tattachu(tag uint16, fid, afid uint32, uname, aname string, nuname uint32) {
	b := header(7+4+4+2+len(uname)+2+len(aname)+4, msgTattach, tag)
	buint32(b[7:11], fid)
	buint32(b[11:15], afid)
	off := putString(b, 15, uname)
	off = putString(b, off, aname)
	buint32(b[off:off+4], nuname)
	enc.write(b)
}
