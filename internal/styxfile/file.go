// Package styxfile provides helper routines and interfaces
// for serving 9P files from Go types.
package styxfile

import (
	"errors"
	"io"
)

// 9P read/write requests contain an offset. This makes them
// well-suited to the io.ReaderAt and io.WriterAt interfaces.

// ErrNotSupported is returned when a given type does not
// implement the necessary functionality to complete a given
// read/write operation.
var ErrNotSupported = errors.New("not supported")

// Interface describes the methods a type must implement to
// be used as a file by a 9P file server.
type Interface interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}
