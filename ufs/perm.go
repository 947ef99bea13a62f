package ufs

import (
	"os"

	"aqwari.net/net/ufs9p/styxproto"
)

// accessMode is the 9P access intent passed to check, distinct from
// os.FileMode's permission bits.
type accessMode int

const (
	accessRead accessMode = 1 << iota
	accessWrite
	accessExec
)

const accessRdwr = accessRead | accessWrite

// check decides whether id may access a file with the given host
// FileInfo for the requested mode. uid 0 always grants. Otherwise
// exactly one permission class is consulted — owner, group, or
// other — never a disjunction of all three: the source's "user or
// group or other" check let an unprivileged caller skate through on
// any bit set for any class, regardless of which class it belonged
// to.
func check(fi os.FileInfo, id identity, mode accessMode) bool {
	if id.uid == 0 {
		return true
	}
	uid, gid, _ := statOwner(fi)
	perm := fi.Mode().Perm()

	var class os.FileMode
	switch {
	case uid == id.uid:
		class = (perm >> 6) & 07
	case id.inGroup(gid):
		class = (perm >> 3) & 07
	default:
		class = perm & 07
	}

	if mode&accessRead != 0 && class&04 == 0 {
		return false
	}
	if mode&accessWrite != 0 && class&02 == 0 {
		return false
	}
	if mode&accessExec != 0 && class&01 == 0 {
		return false
	}
	return true
}

// om2mode translates a 9P Topen/Tcreate mode byte into an accessMode:
// the low-order bits per the OREAD/OWRITE/ORDWR/OEXEC encoding, with
// OTRUNC additionally requiring accessWrite — truncating a file is a
// write, whether or not the open itself asked to write the result.
func om2mode(om byte) accessMode {
	var mode accessMode
	switch om & 3 {
	case styxproto.OREAD:
		mode = accessRead
	case styxproto.OWRITE:
		mode = accessWrite
	case styxproto.ORDWR:
		mode = accessRdwr
	case styxproto.OEXEC:
		mode = accessExec
	default:
		mode = accessRead
	}
	if om&styxproto.OTRUNC != 0 {
		mode |= accessWrite
	}
	return mode
}
