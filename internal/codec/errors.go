package codec

import "errors"

// Error kinds from the error-handling design: malformed wire data, missing
// signatures, unknown message tags and unsupported envelope versions are
// the failure modes the codec itself can produce. All are absorbed
// (dropped, logged) by callers, never panicked.
var (
	ErrMalformedMessage = errors.New("codec: malformed message")
	ErrSignatureMissing = errors.New("codec: signature missing")
	ErrUnknownTag        = errors.New("codec: unknown message tag")
	ErrUnsupportedVersion = errors.New("codec: unsupported envelope version")
)
