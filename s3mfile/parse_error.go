package s3mfile

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat reports a file that is not an S3M module
	// (bad EOF marker, file type, format version or "SCRM" magic).
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrUnsupportedInstrument reports an instrument record that is not
	// an uncompressed PCM sample ("SCRS").
	ErrUnsupportedInstrument = errors.New("unsupported instrument")

	// ErrUnsupportedSampleType reports a stereo or 16-bit sample.
	ErrUnsupportedSampleType = errors.New("unsupported sample type")

	// ErrMalformed reports a truncated or structurally invalid file.
	ErrMalformed = errors.New("malformed module")
)

type ParseError struct {
	// Kind is one of the Err* values of this package.
	Kind error

	Message string

	Offset int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s (offset=%d)", e.Kind, e.Message, e.Offset)
}

func (e *ParseError) Unwrap() error { return e.Kind }
