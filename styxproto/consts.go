package styxproto

// 9P2000 message type bytes, assigned as in the original Plan 9
// protocol and kept by every later dialect (9P2000.u, 9P2000.L).
const (
	msgTversion uint8 = 100 + iota
	msgRversion
	msgTauth
	msgRauth
	msgTattach
	msgRattach
	msgTerror // illegal, never sent
	msgRerror
	msgTflush
	msgRflush
	msgTwalk
	msgRwalk
	msgTopen
	msgRopen
	msgTcreate
	msgRcreate
	msgTread
	msgRread
	msgTwrite
	msgRwrite
	msgTclunk
	msgRclunk
	msgTremove
	msgRremove
	msgTstat
	msgRstat
	msgTwstat
	msgRwstat
)

// NoTag is used as the Tag value of a Tversion/Rversion message,
// the only 9P message exchanged before a session has tags of its own.
const NoTag uint16 = 1<<16 - 1

// NoFid is used in the afid field of a Tattach/Tauth message when a
// client does not wish to authenticate.
const NoFid uint32 = 1<<32 - 1

// QidLen is the length, in bytes, of a Qid.
const QidLen = 13

// DefaultMaxSize is used as a Conn's max message size until the
// client and server negotiate a (possibly smaller) one with Tversion.
const DefaultMaxSize = DefaultBufSize

// Mode bits used in the Mode field of a Stat structure and the perm
// field of a Tcreate request. These occupy the same bit positions as
// a QidType in the upper byte.
const (
	DMDIR    = 0x80000000 // mode bit for directories
	DMAPPEND = 0x40000000 // mode bit for append-only files
	DMEXCL   = 0x20000000 // mode bit for exclusive-use files
	DMMOUNT  = 0x10000000 // mode bit for mounted channels
	DMAUTH   = 0x08000000 // mode bit for authentication files
	DMTMP    = 0x04000000 // mode bit for non-backed-up files

	DMREAD  = 0x4 // mode bit for read permission
	DMWRITE = 0x2 // mode bit for write permission
	DMEXEC  = 0x1 // mode bit for execute permission
)

// Open/create mode bits (the mode field of Topen and Tcreate).
const (
	OREAD   uint8 = 0    // open for read
	OWRITE  uint8 = 1    // open for write
	ORDWR   uint8 = 2    // open for read and write
	OEXEC   uint8 = 3    // open for execute
	OTRUNC  uint8 = 0x10 // truncate file first
	ORCLOSE uint8 = 0x40 // remove on clunk
)
