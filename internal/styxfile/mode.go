package styxfile

import (
	"os"

	"aqwari.net/net/ufs9p/styxproto"
)

// Mode9P converts an os.FileMode to a 9P mode mask
func Mode9P(mode os.FileMode) uint32 {
	var perm uint32
	if mode&os.ModeDir != 0 {
		perm |= styxproto.DMDIR
	}
	if mode&os.ModeAppend != 0 {
		perm |= styxproto.DMAPPEND
	}
	if mode&os.ModeExclusive != 0 {
		perm |= styxproto.DMEXCL
	}
	if mode&os.ModeTemporary != 0 {
		perm |= styxproto.DMTMP
	}
	return perm | uint32(mode&os.ModePerm)
}

// QidType selects the first byte of a 9P mode mask,
// and is suitable for use in a Qid's type field.
func QidType(mode uint32) styxproto.QidType {
	return styxproto.QidType(mode >> 24)
}
