package ufs

import (
	"errors"
	"os"
	"syscall"
)

// Sentinel errors for the conditions spec'd in the error taxonomy.
// They are recognized with errors.Is; the op dispatcher maps
// whichever error it receives (these or a raw syscall error) to a
// POSIX errno with Errno and sends that errno's text as the Rerror's
// ename. The Rerror carries no numeric errno field.
var (
	ErrPermission  = errors.New("permission denied")
	ErrReadOnly    = errors.New("read-only file system")
	ErrBusy        = errors.New("fid already open")
	ErrIsDir       = errors.New("is a directory")
	ErrNotDir      = errors.New("not a directory")
	ErrInvalidName = errors.New("invalid file name")
	ErrOutOfRange  = errors.New("field not permitted in wstat")
)

// Errno maps an error returned by an op handler to a POSIX error
// number, whose text rerror sends as the Rerror's ename, mirroring
// fs.c's verbatim-errno policy (see spec's Design Notes on fs_open's
// loss of the real errno).
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrPermission):
		return syscall.EPERM
	case errors.Is(err, ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, ErrBusy):
		return syscall.EBUSY
	case errors.Is(err, ErrIsDir):
		return syscall.EISDIR
	case errors.Is(err, ErrNotDir):
		return syscall.ENOTDIR
	case errors.Is(err, ErrInvalidName):
		return syscall.EINVAL
	case errors.Is(err, ErrOutOfRange):
		return syscall.EPERM
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return Errno(perr.Err)
	}
	var lerr *os.LinkError
	if errors.As(err, &lerr) {
		return Errno(lerr.Err)
	}
	return syscall.EIO
}
