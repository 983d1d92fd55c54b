package dump

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"time"

	"github.com/ouroheap/ouro"
	"github.com/ouroheap/ouro/resource"
)

// Options contains configuration for encoding dumps.
type Options struct {
	// Compression selects the body codec.
	Compression Compression

	// Controller rate-limits dump writes through its IO budget when set.
	// A nil controller writes unthrottled.
	Controller *resource.Controller

	// ChunkBytes is the write granularity; each chunk is admitted through
	// the controller separately. It must not exceed the controller's
	// per-second IO budget.
	ChunkBytes int
}

// DefaultOptions returns default dump options.
var DefaultOptions = Options{
	Compression: CompressionZSTD,
	ChunkBytes:  256 * 1024,
}

// Write encodes snap into w.
func Write(ctx context.Context, w io.Writer, snap ouro.Snapshot, optFns ...func(o *Options)) error {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ChunkBytes <= 0 {
		opts.ChunkBytes = DefaultOptions.ChunkBytes
	}

	body, err := compress(encodeObjects(snap.Objects), opts.Compression)
	if err != nil {
		return fmt.Errorf("dump: compress body: %w", err)
	}

	hdr := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: uint8(opts.Compression),
		ObjectCount: uint32(len(snap.Objects)),
		Passes:      snap.Passes,
		TakenAtUnix: snap.TakenAt.UnixNano(),
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("dump: write header: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(body))); err != nil {
		return fmt.Errorf("dump: write body length: %w", err)
	}
	buf.Write(body)
	if err := binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(body)); err != nil {
		return fmt.Errorf("dump: write checksum: %w", err)
	}

	return writeChunked(ctx, w, buf.Bytes(), &opts)
}

func writeChunked(ctx context.Context, w io.Writer, data []byte, opts *Options) error {
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := opts.ChunkBytes
		if n > len(data) {
			n = len(data)
		}
		if err := opts.Controller.AcquireIO(ctx, n); err != nil {
			return fmt.Errorf("dump: io budget: %w", err)
		}
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Read decodes one dump from r.
func Read(ctx context.Context, r io.Reader) (ouro.Snapshot, error) {
	var snap ouro.Snapshot

	var hdr FileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return snap, fmt.Errorf("dump: read header: %w", eofToTruncated(err))
	}
	if hdr.Magic != MagicNumber {
		return snap, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, hdr.Magic)
	}
	if hdr.Version != Version {
		return snap, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, hdr.Version)
	}
	if Compression(hdr.Compression) > CompressionZSTD {
		return snap, fmt.Errorf("%w: %d", ErrInvalidCompression, hdr.Compression)
	}

	var bodyLen uint64
	if err := binary.Read(r, binary.LittleEndian, &bodyLen); err != nil {
		return snap, fmt.Errorf("dump: read body length: %w", eofToTruncated(err))
	}
	if bodyLen > maxBodyBytes {
		return snap, fmt.Errorf("dump: body length %d exceeds limit", bodyLen)
	}
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	body := make([]byte, int(bodyLen))
	if _, err := io.ReadFull(r, body); err != nil {
		return snap, fmt.Errorf("dump: read body: %w", eofToTruncated(err))
	}

	var sum uint32
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return snap, fmt.Errorf("dump: read checksum: %w", eofToTruncated(err))
	}
	if actual := crc32.ChecksumIEEE(body); actual != sum {
		return snap, &ChecksumMismatchError{Expected: sum, Actual: actual}
	}

	raw, err := decompress(body, Compression(hdr.Compression))
	if err != nil {
		return snap, err
	}

	objects, err := decodeObjects(raw, int(hdr.ObjectCount))
	if err != nil {
		return snap, err
	}

	snap.TakenAt = time.Unix(0, hdr.TakenAtUnix)
	snap.Passes = hdr.Passes
	snap.Objects = objects
	return snap, nil
}

// WriteTo encodes snap and archives it in s under name.
func WriteTo(ctx context.Context, s Store, name string, snap ouro.Snapshot, optFns ...func(o *Options)) error {
	var buf bytes.Buffer
	if err := Write(ctx, &buf, snap, optFns...); err != nil {
		return err
	}
	return s.Put(ctx, name, buf.Bytes())
}

// ReadFrom opens name in s and decodes it.
func ReadFrom(ctx context.Context, s Store, name string) (ouro.Snapshot, error) {
	rc, err := s.Open(ctx, name)
	if err != nil {
		return ouro.Snapshot{}, err
	}
	defer rc.Close()

	return Read(ctx, rc)
}

func eofToTruncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return err
}

// Object records are laid out as:
// [ID u64][Strong u32][Weak u32][Internal u32]
// [TypeLen u16][Type bytes][RefCount u32][Ref u64...]
//
// minRecordBytes is the fixed portion of one record: the smallest record has
// an empty type name and no references.
const minRecordBytes = 8 + 4 + 4 + 4 + 2 + 4

func encodeObjects(objects []ouro.ObjectInfo) []byte {
	var buf bytes.Buffer
	for i := range objects {
		o := &objects[i]

		name := o.Type
		if len(name) > math.MaxUint16 {
			name = name[:math.MaxUint16]
		}

		putUint64(&buf, uint64(o.ID))
		putUint32(&buf, o.Strong)
		putUint32(&buf, o.Weak)
		putUint32(&buf, o.Internal)
		putUint16(&buf, uint16(len(name)))
		buf.WriteString(name)
		putUint32(&buf, uint32(len(o.Refs)))
		for _, ref := range o.Refs {
			putUint64(&buf, uint64(ref))
		}
	}
	return buf.Bytes()
}

func decodeObjects(data []byte, count int) ([]ouro.ObjectInfo, error) {
	if count == 0 {
		if len(data) != 0 {
			return nil, fmt.Errorf("dump: %d trailing bytes after 0 object records", len(data))
		}
		return nil, nil
	}
	// The header's count is untrusted; bound it by the body before sizing
	// any allocation on it.
	if int64(count)*minRecordBytes > int64(len(data)) {
		return nil, fmt.Errorf("%w: %d object records in a %d byte body", ErrTruncated, count, len(data))
	}

	rd := recordReader{data: data}
	objects := make([]ouro.ObjectInfo, 0, count)
	for i := 0; i < count; i++ {
		var o ouro.ObjectInfo

		id, err := rd.uint64()
		if err != nil {
			return nil, err
		}
		o.ID = ouro.ID(id)

		if o.Strong, err = rd.uint32(); err != nil {
			return nil, err
		}
		if o.Weak, err = rd.uint32(); err != nil {
			return nil, err
		}
		if o.Internal, err = rd.uint32(); err != nil {
			return nil, err
		}

		nameLen, err := rd.uint16()
		if err != nil {
			return nil, err
		}
		name, err := rd.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		o.Type = string(name)

		refCount, err := rd.uint32()
		if err != nil {
			return nil, err
		}
		if int64(refCount)*8 > int64(rd.remaining()) {
			return nil, fmt.Errorf("%w: object record %d", ErrTruncated, i)
		}
		if refCount > 0 {
			o.Refs = make([]ouro.ID, 0, refCount)
			for j := uint32(0); j < refCount; j++ {
				ref, err := rd.uint64()
				if err != nil {
					return nil, err
				}
				o.Refs = append(o.Refs, ouro.ID(ref))
			}
		}

		objects = append(objects, o)
	}
	if rd.remaining() != 0 {
		return nil, fmt.Errorf("dump: %d trailing bytes after %d object records", rd.remaining(), count)
	}
	return objects, nil
}

// recordReader is a bounds-checked cursor over the decompressed body.
type recordReader struct {
	data []byte
	off  int
}

func (r *recordReader) remaining() int {
	return len(r.data) - r.off
}

func (r *recordReader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("%w: object records", ErrTruncated)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *recordReader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *recordReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *recordReader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func putUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
