package ginternals

import "errors"

// ErrObjectNotFound is an error corresponding to a git object not being
// found
var ErrObjectNotFound = errors.New("object not found")

// ErrInvalidDelta is returned when a delta's instructions don't decode
// to a valid object: a copy reading past the end of the base, an
// unrecognized opcode, or a reconstructed size that doesn't match the
// delta's own target size header.
var ErrInvalidDelta = errors.New("invalid delta")

// ErrUnsafePath is returned when a tree entry's path would escape the
// directory it's being checked out into, e.g. via ".." components or an
// absolute path.
var ErrUnsafePath = errors.New("unsafe path")
