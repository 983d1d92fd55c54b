package dump

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies heap dump files (ASCII: "ORH1").
	MagicNumber = 0x4F524831
	// Version is the current dump format version (v1.0.0).
	Version = 0x00010000
)

// maxBodyBytes bounds the body length a reader will accept, so a corrupt
// length prefix cannot trigger an oversized allocation.
const maxBodyBytes = 1 << 32

var (
	ErrInvalidMagic       = errors.New("dump: invalid magic number")
	ErrInvalidVersion     = errors.New("dump: unsupported version")
	ErrInvalidCompression = errors.New("dump: unknown compression codec")
	ErrTruncated          = errors.New("dump: truncated dump")
)

// FileHeader is the fixed 32-byte header at the start of every dump.
type FileHeader struct {
	Magic       uint32 // 0x4F524831 ("ORH1")
	Version     uint32 // Dump format version
	Compression uint8  // Body codec, see Compression
	Padding     [3]byte
	ObjectCount uint32 // Number of object records in the body
	Passes      uint64 // Collection passes run when the snapshot was taken
	TakenAtUnix int64  // Capture time, nanoseconds since the Unix epoch
}

// ChecksumMismatchError is returned when the body fails CRC verification.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("dump: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// IsChecksumMismatch reports whether err is a checksum mismatch.
func IsChecksumMismatch(err error) bool {
	var cm *ChecksumMismatchError
	return errors.As(err, &cm)
}
