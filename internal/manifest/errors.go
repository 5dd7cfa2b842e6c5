package manifest

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedManifest = errors.New("malformed manifest")
	ErrUnknownFrameKind  = errors.New("unknown frame kind")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrTileOutOfBounds   = errors.New("tile out of bounds")
)

// NoFrame marks an Error that is not tied to a particular frame.
const NoFrame = -1

// Error locates a manifest defect: which frame, which field, which entry.
type Error struct {
	Frame int
	Entry int // index inside diffs, -1 if not applicable
	Field string
	Err   error
	Msg   string
}

func (e *Error) Error() string {
	loc := ""
	switch {
	case e.Frame != NoFrame && e.Entry >= 0:
		loc = fmt.Sprintf("frame %d, diff %d, ", e.Frame, e.Entry)
	case e.Frame != NoFrame:
		loc = fmt.Sprintf("frame %d, ", e.Frame)
	}
	return fmt.Sprintf("%v: %s%s: %s", e.Err, loc, e.Field, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind error, frame, entry int, field, format string, args ...any) *Error {
	return &Error{
		Frame: frame,
		Entry: entry,
		Field: field,
		Err:   kind,
		Msg:   fmt.Sprintf(format, args...),
	}
}

// Malformed builds an ErrMalformedManifest error that is not tied to a frame.
func Malformed(field, format string, args ...any) *Error {
	return newError(ErrMalformedManifest, NoFrame, -1, field, format, args...)
}

// TileOutOfBounds reports a copy rectangle that does not fit its image.
func TileOutOfBounds(frame, entry int, field, format string, args ...any) *Error {
	return newError(ErrTileOutOfBounds, frame, entry, field, format, args...)
}
