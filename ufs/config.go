// Package ufs implements a 9P2000/9P2000.u backend that projects a
// subtree of the host filesystem onto the protocol. It implements
// styxserver.Interface directly, the way fs.c implements lib9p's
// backend callback table.
package ufs

import (
	"fmt"
	"path/filepath"

	"aqwari.net/net/ufs9p/internal/qidpool"
)

// Logger receives diagnostic messages from a Backend — a failed
// syscall, a rejected wstat, and the like. It is satisfied by
// *log.Logger, the same minimal shape the teacher's own server used
// for its ErrorLog.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Config is the immutable configuration of a Backend.
type Config struct {
	// Root is the absolute host path exposed as the 9P tree root.
	Root string

	// ReadOnly forbids any operation with filesystem side effects.
	ReadOnly bool

	// AuxTrees names auxiliary subtrees mounted alongside Root. It is
	// retained for parity with fs.c's fs_auxtrees field, which that
	// implementation populates but never reads from any op callback;
	// no op handler in this backend reads it either.
	AuxTrees map[string]string

	// Logger receives a line for every op handler error that is
	// translated into an Rerror through Errno. Unknown-fid, fid-not-open
	// and Auth replies are sent directly and are not logged. Nil
	// disables diagnostic logging.
	Logger Logger
}

// Backend is a 9P2000/9P2000.u file server rooted at a Config's Root.
// A Backend is immutable once constructed and safe for concurrent use;
// qids it allocates are shared across every Session so that the same
// host path always maps to the same qid regardless of which
// connection observes it first.
type Backend struct {
	cfg     Config
	qids    *qidpool.Pool
	idcache *identityCache
}

// New constructs a Backend rooted at cfg.Root. Root is made absolute
// and resolved of symlinks once, at construction time, so that every
// subsequent path comparison can use simple prefix matching.
func New(cfg Config) (*Backend, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("ufs: resolve root: %w", err)
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("ufs: resolve root: %w", err)
	}
	cfg.Root = filepath.Clean(root)
	return &Backend{
		cfg:     cfg,
		qids:    qidpool.New(),
		idcache: newIdentityCache(),
	}, nil
}

// String returns the Backend's root path, for diagnostic logging.
func (b *Backend) String() string {
	return b.cfg.Root
}

// logf writes a diagnostic message to the Backend's configured
// Logger, if any.
func (b *Backend) logf(format string, v ...interface{}) {
	if b.cfg.Logger != nil {
		b.cfg.Logger.Printf(format, v...)
	}
}

// NewSession returns a new per-connection handler implementing
// styxserver.Interface. 9P fid numbers are scoped to a single
// connection, so each connection gets its own fid table backed by
// this shared Backend.
func (b *Backend) NewSession() *Session {
	return &Session{
		b:    b,
		fids: make(map[uint32]*Fid),
	}
}
