package ufs

import (
	"os"
	"path/filepath"
	"syscall"
	"time"

	"aqwari.net/net/ufs9p/internal/qidpool"
	"aqwari.net/net/ufs9p/styxproto"
	"golang.org/x/sys/unix"
)

// statOwner extracts the host uid/gid/inode triple from a FileInfo's
// underlying syscall.Stat_t. It returns zero values on platforms or
// filesystems that don't populate Sys() with a *syscall.Stat_t.
func statOwner(fi os.FileInfo) (uid, gid uint32, ino uint64) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, 0
	}
	return st.Uid, st.Gid, st.Ino
}

// qidType returns the qid type byte for a host FileInfo.
func qidType(fi os.FileInfo) styxproto.QidType {
	if fi.IsDir() {
		return styxproto.QTDIR
	}
	return styxproto.QTFILE
}

// toQid retrieves or builds the qid for path. Its path-id is the host
// inode number observed the first time this path was seen, per I2; the
// Backend's shared pool memoizes the mapping from path to qid so that
// every fid walked to the same path gets back the identical qid, and
// so a later wstat-rename can re-key the memoized entry (applyWstat)
// without losing the original inode-derived identity.
func (b *Backend) toQid(path string, fi os.FileInfo) styxproto.Qid {
	if qid, ok := b.qids.Load(path); ok {
		return qid
	}
	_, _, ino := statOwner(fi)
	return b.qids.LoadOrStoreQid(path, qidpool.NewQidForIno(qidType(fi), ino))
}

// toStat renders the host FileInfo at path into a 9P2000.u stat
// record, using buf as scratch space. name overrides the record's
// name field; the root's entry is named "/" rather than its last
// path component.
func (b *Backend) toStat(buf []byte, path, name string, fi os.FileInfo) (styxproto.Stat, error) {
	uid, gid, _ := statOwner(fi)
	uidName := b.idcache.nameForUid(uid)
	gidName := b.idcache.nameForGid(gid)

	stat, _, err := styxproto.NewStatu(buf, name, uidName, gidName, uidName, uid, gid, uid)
	if err != nil {
		return nil, err
	}

	mode := uint32(fi.Mode().Perm())
	if fi.IsDir() {
		mode |= styxproto.DMDIR
	}
	stat.SetMode(mode)
	stat.SetMtime(uint32(fi.ModTime().Unix()))
	stat.SetAtime(stat.Mtime())
	stat.SetLength(fi.Size())
	stat.SetQid(b.toQid(path, fi))
	return stat, nil
}

// noTag16 is the "leave unchanged" sentinel for a wstat Stat's 2-byte
// fields, mirroring NoTag's role for Tversion/Rversion.
const noTag16 uint16 = 1<<16 - 1

// noVal32 is the "leave unchanged" sentinel for a wstat Stat's 4-byte
// integer fields (dev, mode, atime, mtime) that aren't already covered
// by styxproto.NoUid.
const noVal32 uint32 = 1<<32 - 1

// qidUnset reports whether q is the all-ones sentinel a client sends
// to mean "don't touch the qid" in a Twstat.
func qidUnset(q styxproto.Qid) bool {
	for _, b := range q {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// applyWstat mutates the host file at path according to a 9P2000.u
// Stat record, treating each field's all-ones (or empty-string)
// sentinel as "leave unchanged". dev, type, qid and muid are not
// settable at all: any attempt to change them fails with
// ErrOutOfRange, matching fs.c's fs_wstat. It never partially applies
// a rename across directories, since 9P's wstat rename is defined only
// within the same parent.
func (s *Session) applyWstat(f *Fid, stat styxproto.Stat) error {
	b := s.b
	if b.cfg.ReadOnly {
		return ErrReadOnly
	}

	if t := stat.Type(); t != noTag16 {
		return ErrOutOfRange
	}
	if dev := stat.Dev(); dev != noVal32 {
		return ErrOutOfRange
	}
	if !qidUnset(stat.Qid()) {
		return ErrOutOfRange
	}
	if muid := string(stat.Muid()); muid != "" {
		return ErrOutOfRange
	}

	st, err := statAt(f.path)
	if err != nil {
		return err
	}
	isDir := st.Mode&unix.S_IFMT == unix.S_IFDIR

	newPath := f.path

	if name := string(stat.Name()); name != "" {
		if filepath.Base(name) != name {
			return ErrInvalidName
		}
		dir := filepath.Dir(f.path)
		renamed := filepath.Join(dir, name)
		if renamed != f.path {
			if err := renameAt(f.path, name); err != nil {
				return err
			}
			if qid, ok := b.qids.Load(f.path); ok {
				b.qids.LoadOrStoreQid(renamed, qid)
				b.qids.Del(f.path)
			}
			newPath = renamed
		}
	}

	if l := stat.Length(); l != -1 && !isDir {
		if err := os.Truncate(newPath, l); err != nil {
			return err
		}
	} else if l != -1 && isDir {
		return ErrIsDir
	}

	if mode := stat.Mode(); mode != noVal32 {
		perm := os.FileMode(mode & 0777)
		if err := chmodAt(newPath, perm); err != nil {
			return err
		}
	}

	if mtime := stat.Mtime(); mtime != noVal32 {
		atime := time.Now()
		if a := stat.Atime(); a != noVal32 {
			atime = time.Unix(int64(a), 0)
		}
		if err := utimesAt(newPath, atime, time.Unix(int64(mtime), 0)); err != nil {
			return err
		}
	}

	uid, gid := -1, -1

	if nuid, ok := stat.Nuid(); ok && nuid != styxproto.NoUid {
		uid = int(nuid)
	} else if uname := string(stat.Uid()); uname != "" {
		id, err := b.idcache.resolveUname(uname)
		if err != nil {
			return err
		}
		uid = int(id.uid)
	}

	if ngid, ok := stat.Ngid(); ok && ngid != styxproto.NoUid {
		gid = int(ngid)
	} else if gname := string(stat.Gid()); gname != "" {
		resolved, err := b.idcache.resolveGroupName(gname)
		if err != nil {
			return err
		}
		gid = int(resolved)
	}

	if uid != -1 || gid != -1 {
		if err := chownAt(newPath, uid, gid); err != nil {
			return err
		}
	}

	f.path = newPath
	return nil
}
