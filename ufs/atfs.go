package ufs

import (
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// withParentDir opens the parent directory of path and calls fn with
// its file descriptor and path's base name, then closes the
// directory. Each helper in this file opens the parent afresh for its
// own syscall. The permission checks in Create and removeFid stat
// paths by name before calling these helpers, so those checks are not
// made against the descriptor opened here.
func withParentDir(path string, fn func(dirfd int, name string) error) error {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	dirfd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return &os.PathError{Op: "open", Path: dir, Err: err}
	}
	defer unix.Close(dirfd)
	return fn(dirfd, name)
}

// createFileAt creates and opens a regular file at path relative to
// its already-validated parent, failing if it exists.
func createFileAt(path string, flag int, perm os.FileMode) (*os.File, error) {
	var f *os.File
	err := withParentDir(path, func(dirfd int, name string) error {
		fd, err := unix.Openat(dirfd, name, flag|unix.O_CREAT|unix.O_EXCL, uint32(perm.Perm()))
		if err != nil {
			return &os.PathError{Op: "open", Path: path, Err: err}
		}
		f = os.NewFile(uintptr(fd), path)
		return nil
	})
	return f, err
}

// mkdirAt creates a directory at path relative to its parent.
func mkdirAt(path string, perm os.FileMode) error {
	return withParentDir(path, func(dirfd int, name string) error {
		if err := unix.Mkdirat(dirfd, name, uint32(perm.Perm())); err != nil {
			return &os.PathError{Op: "mkdir", Path: path, Err: err}
		}
		return nil
	})
}

// removeAt unlinks or rmdirs path relative to its parent. The
// write-permission check in removeFid is made beforehand with
// os.Lstat on the parent's path, not on this descriptor.
func removeAt(path string, isDir bool) error {
	return withParentDir(path, func(dirfd int, name string) error {
		flags := 0
		if isDir {
			flags = unix.AT_REMOVEDIR
		}
		if err := unix.Unlinkat(dirfd, name, flags); err != nil {
			return &os.PathError{Op: "remove", Path: path, Err: err}
		}
		return nil
	})
}

// chownAt changes ownership of path relative to its parent without
// following a trailing symlink, so wstat's chown of a symlink fid
// changes the link itself and not its target.
func chownAt(path string, uid, gid int) error {
	return withParentDir(path, func(dirfd int, name string) error {
		if err := unix.Fchownat(dirfd, name, uid, gid, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return &os.PathError{Op: "chown", Path: path, Err: err}
		}
		return nil
	})
}

// statAt stats path relative to its parent directory, not following a
// trailing symlink. Like the other helpers here it opens its own
// directory descriptor; applyWstat's later mutations each open
// another one.
func statAt(path string) (unix.Stat_t, error) {
	var st unix.Stat_t
	err := withParentDir(path, func(dirfd int, name string) error {
		if err := unix.Fstatat(dirfd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return &os.PathError{Op: "stat", Path: path, Err: err}
		}
		return nil
	})
	return st, err
}

// chmodAt changes the permission bits of path relative to its parent.
func chmodAt(path string, perm os.FileMode) error {
	return withParentDir(path, func(dirfd int, name string) error {
		if err := unix.Fchmodat(dirfd, name, uint32(perm.Perm()), 0); err != nil {
			return &os.PathError{Op: "chmod", Path: path, Err: err}
		}
		return nil
	})
}

// utimesAt sets the access and modification times of path relative to
// its parent, without following a trailing symlink.
func utimesAt(path string, atime, mtime time.Time) error {
	ts := []unix.Timespec{
		unix.NsecToTimespec(atime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	return withParentDir(path, func(dirfd int, name string) error {
		if err := unix.UtimesNanoAt(dirfd, name, ts, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return &os.PathError{Op: "utimes", Path: path, Err: err}
		}
		return nil
	})
}

// renameAt renames oldpath to a new name within the same parent
// directory, using one directory descriptor for both sides of the
// rename since 9P wstat-rename never crosses directories.
func renameAt(oldpath, newname string) error {
	dir := filepath.Dir(oldpath)
	oldname := filepath.Base(oldpath)
	dirfd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return &os.PathError{Op: "open", Path: dir, Err: err}
	}
	defer unix.Close(dirfd)
	if err := unix.Renameat(dirfd, oldname, dirfd, newname); err != nil {
		return &os.PathError{Op: "rename", Path: oldpath, Err: err}
	}
	return nil
}
