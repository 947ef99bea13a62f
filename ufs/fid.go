package ufs

import (
	"os"
	"sync"

	"aqwari.net/net/ufs9p/internal/styxfile"
	"aqwari.net/net/ufs9p/styxproto"
)

// fidState is the lifecycle state of a Fid, per the walk/open/clunk
// state machine: a fid starts Idle (bound to a path but unopened),
// moves to OpenFile or OpenDir on a successful Topen/Tcreate, and is
// removed from its Session's table on Tclunk or Tremove.
type fidState int

const (
	fidIdle fidState = iota
	fidOpenFile
	fidOpenDir
)

// Fid is the server-side state bound to a client's fid number: the
// host path it was walked to, its owning identity, the qid last
// returned for it, and — once opened — the kernel handle backing
// reads and writes.
type Fid struct {
	path   string
	qid    styxproto.Qid
	owner  identity
	state  fidState
	file   *os.File
	dir    styxfile.Interface
}

// Session is the per-connection handler for a Backend: it implements
// styxserver.Interface by translating each 9P operation into a Fid
// state transition and a host filesystem call. Fid numbers are scoped
// to the connection a Session serves, so each connection gets its own
// instance from Backend.NewSession.
type Session struct {
	b *Backend

	mu   sync.Mutex
	fids map[uint32]*Fid
}

// bind associates fidnum with f, replacing any previous association.
// Neither bind nor its callers (Attach, Walk) check whether fidnum is
// already bound; a Fid replaced this way is not clunked.
func (s *Session) bind(fidnum uint32, f *Fid) {
	s.mu.Lock()
	s.fids[fidnum] = f
	s.mu.Unlock()
}

// lookup returns the Fid bound to fidnum, or nil if none exists.
func (s *Session) lookup(fidnum uint32) *Fid {
	s.mu.Lock()
	f := s.fids[fidnum]
	s.mu.Unlock()
	return f
}

// clunk removes fidnum from the table and releases any kernel handle
// it holds. It is a no-op if fidnum is unknown, matching Tclunk's
// semantics: clunking an unrecognized fid is not an error.
func (s *Session) clunk(fidnum uint32) {
	s.mu.Lock()
	f := s.fids[fidnum]
	delete(s.fids, fidnum)
	s.mu.Unlock()
	if f == nil {
		return
	}
	switch f.state {
	case fidOpenFile:
		if f.file != nil {
			f.file.Close()
		}
	case fidOpenDir:
		if f.dir != nil {
			f.dir.Close()
		}
	}
}
