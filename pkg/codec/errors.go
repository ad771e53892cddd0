package codec

import "errors"

var (
	ErrFrameTooLarge          = errors.New("codec: frame too large")
	ErrChecksumMismatch       = errors.New("codec: checksum mismatch")
	ErrCorruptFrame           = errors.New("codec: corrupt frame")
	ErrUnsupportedCompression = errors.New("codec: unsupported compression")
	ErrUnsupportedChecksum    = errors.New("codec: unsupported checksum")
)
