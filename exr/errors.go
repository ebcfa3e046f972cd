package exr

import (
	"errors"
	"fmt"

	"github.com/fursund/exrs/compression"
)

// Errors returned by this package. Failures are wrapped around one of these
// sentinels so that callers can tell them apart with errors.Is; errors from
// the underlying reader or writer are returned unchanged.
var (
	// ErrInvalid reports malformed headers, offset tables or chunks.
	ErrInvalid = errors.New("exr: invalid data")

	// ErrNotSupported reports a feature this package recognizes but does
	// not implement, such as deep data or an unknown compression.
	ErrNotSupported = errors.New("exr: not supported")

	// ErrAborted is returned when a ProgressFunc requests a stop.
	ErrAborted = errors.New("exr: aborted")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotSupported, fmt.Sprintf(format, args...))
}

// codecError classifies an error returned by a codec.
func codecError(c Compression, err error) error {
	if errors.Is(err, compression.ErrUnsupported) {
		return fmt.Errorf("%w: %s: %v", ErrNotSupported, c, err)
	}
	return fmt.Errorf("%w: %s chunk: %v", ErrInvalid, c, err)
}
