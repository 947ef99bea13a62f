package ufs

import (
	"io"
	"os"
	"path/filepath"

	"aqwari.net/net/ufs9p/internal/styxfile"
	"aqwari.net/net/ufs9p/styxproto"
	"aqwari.net/net/ufs9p/styxserver"
)

// defaultIounit is reported in Ropen/Rcreate replies. styxserver's
// ResponseWriter does not expose the connection's negotiated msize,
// so handlers advertise a conservative fixed unit rather than the
// true per-connection maximum; a client is always free to request
// less per Tread/Twrite.
const defaultIounit = 8192

// rerror replies with the canonical errno text for err rather than
// Go's decorated wrapping (e.g. "open /root/x: permission denied"
// becomes "permission denied"), the errno-fidelity fix for fs_open's
// habit of collapsing every open failure to EPERM: a 9P2000.u client
// matching on Ename() sees the real underlying condition.
func (s *Session) rerror(w *styxserver.ResponseWriter, tag uint16, err error) {
	s.b.logf("op error: %v", err)
	w.Rerror(tag, "%s", Errno(err))
}

// Auth always fails: this backend offers no authentication file, the
// same stance fs.c takes by leaving afid unused.
func (s *Session) Auth(w *styxserver.ResponseWriter, m styxproto.Tauth) {
	defer w.Close()
	w.Rerror(m.Tag(), "authentication not required")
}

func (s *Session) Attach(w *styxserver.ResponseWriter, m styxproto.Tattach) {
	defer w.Close()

	id, err := s.resolveAttachIdentity(m)
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}

	fi, err := os.Lstat(s.b.cfg.Root)
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}
	qid := s.b.toQid(s.b.cfg.Root, fi)

	s.bind(m.Fid(), &Fid{
		path:  s.b.cfg.Root,
		qid:   qid,
		owner: id,
		state: fidIdle,
	})
	w.Rattach(m.Tag(), qid)
}

// resolveAttachIdentity implements the attach identity rule from
// §4.6: a 9P2000.u client's numeric n_uname takes precedence, falling
// back to resolving uname by name; a plain 9P2000 client is resolved
// by uname alone.
func (s *Session) resolveAttachIdentity(m styxproto.Tattach) (identity, error) {
	if nuname, ok := m.Nuname(); ok && nuname != styxproto.NoUid {
		return s.b.idcache.resolveNuname(nuname)
	}
	uname := string(m.Uname())
	if uname == "" {
		return identity{}, ErrPermission
	}
	return s.b.idcache.resolveUname(uname)
}

func (s *Session) Walk(w *styxserver.ResponseWriter, m styxproto.Twalk) {
	defer w.Close()

	f := s.lookup(m.Fid())
	if f == nil {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}

	n := m.Nwname()
	if n == 0 {
		if m.Newfid() != m.Fid() {
			s.bind(m.Newfid(), &Fid{path: f.path, qid: f.qid, owner: f.owner, state: fidIdle})
		}
		w.Rwalk(m.Tag())
		return
	}

	wname := make([]string, n)
	for i := 0; i < n; i++ {
		wname[i] = string(m.Wname(i))
	}

	path := f.path
	qids := make([]styxproto.Qid, 0, n)
	for i, name := range wname {
		next, err := s.b.join(path, name)
		if err != nil {
			if i == 0 {
				s.rerror(w, m.Tag(), err)
				return
			}
			break
		}
		fi, err := os.Lstat(next)
		if err != nil {
			if i == 0 {
				s.rerror(w, m.Tag(), err)
				return
			}
			break
		}
		qids = append(qids, s.b.toQid(next, fi))
		path = next
	}

	if len(qids) == n {
		s.bind(m.Newfid(), &Fid{path: path, qid: qids[len(qids)-1], owner: f.owner, state: fidIdle})
	}
	w.Rwalk(m.Tag(), qids...)
}

func (s *Session) Open(w *styxserver.ResponseWriter, m styxproto.Topen) {
	defer w.Close()

	f := s.lookup(m.Fid())
	if f == nil {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	if f.state != fidIdle {
		s.rerror(w, m.Tag(), ErrBusy)
		return
	}

	fi, err := os.Lstat(f.path)
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}

	access := om2mode(m.Mode())
	if !check(fi, f.owner, access) {
		s.rerror(w, m.Tag(), ErrPermission)
		return
	}

	if fi.IsDir() {
		if access != accessRead {
			s.rerror(w, m.Tag(), ErrIsDir)
			return
		}
		osf, err := os.Open(f.path)
		if err != nil {
			s.rerror(w, m.Tag(), err)
			return
		}
		f.dir = styxfile.NewDir(osf, f.path, s.b.qids)
		f.state = fidOpenDir
		w.Ropen(m.Tag(), f.qid, defaultIounit)
		return
	}

	if s.b.cfg.ReadOnly && access&accessWrite != 0 {
		s.rerror(w, m.Tag(), ErrReadOnly)
		return
	}

	flag := osFlags(m.Mode())
	osf, err := os.OpenFile(f.path, flag, 0)
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}
	f.file = osf
	f.state = fidOpenFile
	w.Ropen(m.Tag(), f.qid, defaultIounit)
}

// osFlags translates a 9P open mode byte into the os.OpenFile flags
// needed on a regular file; ignores the directory-only bits.
func osFlags(om byte) int {
	var flag int
	switch om & 3 {
	case styxproto.OREAD:
		flag = os.O_RDONLY
	case styxproto.OWRITE:
		flag = os.O_WRONLY
	case styxproto.ORDWR:
		flag = os.O_RDWR
	}
	if om&styxproto.OTRUNC != 0 {
		flag |= os.O_TRUNC
	}
	return flag
}

func (s *Session) Create(w *styxserver.ResponseWriter, m styxproto.Tcreate) {
	defer w.Close()

	if s.b.cfg.ReadOnly {
		s.rerror(w, m.Tag(), ErrReadOnly)
		return
	}

	f := s.lookup(m.Fid())
	if f == nil {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	if f.state != fidIdle {
		s.rerror(w, m.Tag(), ErrBusy)
		return
	}

	name := string(m.Name())
	next, err := s.b.join(f.path, name)
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}

	dirFi, err := os.Lstat(f.path)
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}
	if !dirFi.IsDir() {
		s.rerror(w, m.Tag(), ErrNotDir)
		return
	}
	if !check(dirFi, f.owner, accessWrite) {
		s.rerror(w, m.Tag(), ErrPermission)
		return
	}

	perm := os.FileMode(m.Perm() & 0777)
	isDir := m.Perm()&styxproto.DMDIR != 0

	if isDir {
		if err := mkdirAt(next, perm); err != nil {
			s.rerror(w, m.Tag(), err)
			return
		}
		if err := chownAt(next, int(f.owner.uid), int(f.owner.gid)); err != nil {
			s.rerror(w, m.Tag(), err)
			return
		}
		fi, err := os.Lstat(next)
		if err != nil {
			s.rerror(w, m.Tag(), err)
			return
		}
		osf, err := os.Open(next)
		if err != nil {
			s.rerror(w, m.Tag(), err)
			return
		}
		qid := s.b.toQid(next, fi)
		f.path = next
		f.qid = qid
		f.dir = styxfile.NewDir(osf, next, s.b.qids)
		f.state = fidOpenDir
		w.Rcreate(m.Tag(), qid, defaultIounit)
		return
	}

	flag := osFlags(m.Mode())
	osf, err := createFileAt(next, flag, perm)
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}
	if err := chownAt(next, int(f.owner.uid), int(f.owner.gid)); err != nil {
		osf.Close()
		s.rerror(w, m.Tag(), err)
		return
	}
	fi, err := os.Lstat(next)
	if err != nil {
		osf.Close()
		s.rerror(w, m.Tag(), err)
		return
	}
	qid := s.b.toQid(next, fi)
	f.path = next
	f.qid = qid
	f.file = osf
	f.state = fidOpenFile
	w.Rcreate(m.Tag(), qid, defaultIounit)
}

func (s *Session) Read(w *styxserver.ResponseWriter, m styxproto.Tread) {
	defer w.Close()

	f := s.lookup(m.Fid())
	if f == nil {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}

	count := m.Count()
	buf := make([]byte, count)

	switch f.state {
	case fidOpenFile:
		n, err := f.file.ReadAt(buf, m.Offset())
		if err != nil && err != io.EOF && n == 0 {
			s.rerror(w, m.Tag(), err)
			return
		}
		w.Rread(m.Tag(), buf[:n])
	case fidOpenDir:
		n, err := f.dir.ReadAt(buf, m.Offset())
		if err != nil && err != io.EOF && n == 0 {
			s.rerror(w, m.Tag(), err)
			return
		}
		w.Rread(m.Tag(), buf[:n])
	default:
		w.Rerror(m.Tag(), "fid %d not open", m.Fid())
	}
}

func (s *Session) Write(w *styxserver.ResponseWriter, m styxproto.Twrite) {
	defer w.Close()

	if s.b.cfg.ReadOnly {
		s.rerror(w, m.Tag(), ErrReadOnly)
		return
	}

	f := s.lookup(m.Fid())
	if f == nil {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	switch f.state {
	case fidOpenFile:
		n, err := f.file.WriteAt(m.Data(), m.Offset())
		if err != nil {
			s.rerror(w, m.Tag(), err)
			return
		}
		w.Rwrite(m.Tag(), uint32(n))
	case fidOpenDir:
		s.rerror(w, m.Tag(), ErrIsDir)
	default:
		w.Rerror(m.Tag(), "fid %d not open", m.Fid())
	}
}

func (s *Session) Clunk(w *styxserver.ResponseWriter, m styxproto.Tclunk) {
	defer w.Close()
	s.clunk(m.Fid())
	w.Rclunk(m.Tag())
}

func (s *Session) Remove(w *styxserver.ResponseWriter, m styxproto.Tremove) {
	defer w.Close()

	f := s.lookup(m.Fid())
	if f == nil {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		s.clunk(m.Fid())
		return
	}

	err := s.removeFid(f)
	s.clunk(m.Fid())
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}
	w.Rremove(m.Tag())
}

func (s *Session) removeFid(f *Fid) error {
	if s.b.cfg.ReadOnly {
		return ErrReadOnly
	}
	parent := filepath.Dir(f.path)
	if f.path == s.b.cfg.Root {
		return ErrPermission
	}
	parentFi, err := os.Lstat(parent)
	if err != nil {
		return err
	}
	if !check(parentFi, f.owner, accessWrite) {
		return ErrPermission
	}
	fi, err := os.Lstat(f.path)
	if err != nil {
		return err
	}
	return removeAt(f.path, fi.IsDir())
}

func (s *Session) Stat(w *styxserver.ResponseWriter, m styxproto.Tstat) {
	defer w.Close()

	f := s.lookup(m.Fid())
	if f == nil {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	fi, err := os.Lstat(f.path)
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}
	buf := make([]byte, styxproto.MaxStatLen)
	stat, err := s.b.toStat(buf, f.path, statName(s.b, f.path), fi)
	if err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}
	w.Rstat(m.Tag(), stat)
}

// statName returns the name a stat record reports for path: "/" for
// the tree root, the final path component otherwise.
func statName(b *Backend, path string) string {
	if path == b.cfg.Root {
		return "/"
	}
	return filepath.Base(path)
}

func (s *Session) Wstat(w *styxserver.ResponseWriter, m styxproto.Twstat) {
	defer w.Close()

	f := s.lookup(m.Fid())
	if f == nil {
		w.Rerror(m.Tag(), "unknown fid %d", m.Fid())
		return
	}
	if err := s.applyWstat(f, m.Stat()); err != nil {
		s.rerror(w, m.Tag(), err)
		return
	}
	w.Rwstat(m.Tag())
}
