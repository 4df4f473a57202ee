package codec

import "errors"

// ErrTruncated is returned when a read runs off the end of the available
// bytes before a value is fully decoded — the caller stopped too early, not
// that the bytes it did see were wrong.
var ErrTruncated = errors.New("codec: truncated read")

// ErrBadFormat is returned when the bytes read do not form a valid encoding
// of the requested value (bad length prefix, corrupt checksum footer, wrong
// magic).
var ErrBadFormat = errors.New("codec: bad format")
