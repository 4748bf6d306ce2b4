package partition

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/mrlsearch/codec"
	"github.com/hupe1980/mrlsearch/internal/compress"
	"github.com/hupe1980/mrlsearch/internal/hash"
	"github.com/hupe1980/mrlsearch/metadata"
	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/vecmath"
)

const (
	// FormatVersion is the current partition format version.
	FormatVersion = 1

	// MaxPartitionBytes caps the uncompressed payload of one partition.
	// Decode rejects larger declared sizes before allocating.
	MaxPartitionBytes = compress.MaxDecodedSize

	headerSize = 16
	maxString  = math.MaxUint16
)

var magic = [4]byte{'M', 'R', 'L', 'P'}

// ErrCorrupt indicates that partition bytes could not be decoded.
var ErrCorrupt = errors.New("partition: corrupt data")

type encodeOptions struct {
	compression compress.Type
	codec       codec.Codec
}

// EncodeOption configures Encode.
type EncodeOption func(*encodeOptions)

// WithCompression compresses the payload with t when that saves space.
func WithCompression(t compress.Type) EncodeOption {
	return func(o *encodeOptions) { o.compression = t }
}

// WithCodec sets the codec used for entry metadata.
func WithCodec(c codec.Codec) EncodeOption {
	return func(o *encodeOptions) { o.codec = c }
}

// Encode serializes entries into the partition wire format.
// All entries must share the same vector dimension.
func Encode(entries []model.VectorEntry, optFns ...EncodeOption) ([]byte, error) {
	opts := encodeOptions{compression: compress.None, codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}

	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}

	var payload bytes.Buffer
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], uint32(len(entries)))
	payload.Write(scratch[:])
	binary.LittleEndian.PutUint32(scratch[:], uint32(dim))
	payload.Write(scratch[:])

	for i := range entries {
		e := &entries[i]
		if err := vecmath.ValidateDimensions(e.Vector, dim); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
		for _, s := range []string{e.ID, e.Namespace, e.Type} {
			if len(s) > maxString {
				return nil, fmt.Errorf("entry %q: string field exceeds %d bytes", e.ID, maxString)
			}
			binary.LittleEndian.PutUint16(scratch[:2], uint16(len(s)))
			payload.Write(scratch[:2])
			payload.WriteString(s)
		}
		for _, f := range e.Vector {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(f))
			payload.Write(scratch[:])
		}

		var meta []byte
		if len(e.Metadata) > 0 {
			var err error
			if meta, err = opts.codec.Marshal(e.Metadata); err != nil {
				return nil, fmt.Errorf("entry %q: encode metadata: %w", e.ID, err)
			}
		}
		binary.LittleEndian.PutUint32(scratch[:], uint32(len(meta)))
		payload.Write(scratch[:])
		payload.Write(meta)
	}

	raw := payload.Bytes()
	if len(raw) > MaxPartitionBytes {
		return nil, fmt.Errorf("partition payload of %d bytes exceeds %d", len(raw), MaxPartitionBytes)
	}
	body, used, err := compress.Compress(raw, opts.compression)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize, headerSize+len(body))
	copy(out[0:4], magic[:])
	out[4] = FormatVersion
	out[5] = byte(used)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[12:], hash.CRC32C(raw))
	return append(out, body...), nil
}

// Decode parses partition bytes. Every failure wraps ErrCorrupt.
func Decode(key string, data []byte) (*ParsedPartition, error) {
	if len(data) < headerSize {
		return nil, corruptf("short header: %d bytes", len(data))
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, corruptf("bad magic %q", data[0:4])
	}
	if data[4] != FormatVersion {
		return nil, corruptf("unsupported version %d", data[4])
	}
	rawLen := int(binary.LittleEndian.Uint32(data[8:]))
	sum := binary.LittleEndian.Uint32(data[12:])

	body, typ := data[headerSize:], compress.Type(data[5])
	if rawLen > MaxPartitionBytes {
		return nil, fmt.Errorf("%w: %w: declared size %d exceeds %d", ErrCorrupt, compress.ErrSizeLimit, rawLen, MaxPartitionBytes)
	}
	if err := compress.CheckSize(body, typ, rawLen); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	raw, err := compress.Decompress(body, typ, rawLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if hash.CRC32C(raw) != sum {
		return nil, corruptf("checksum mismatch")
	}

	r := reader{buf: raw}
	count := int(r.u32())
	dim := int(r.u32())
	if r.err != nil {
		return nil, r.err
	}
	// Every entry needs at least its fixed-size fields.
	minEntry := 3*2 + dim*4 + 4
	if count > 0 && (len(raw)-8)/minEntry < count {
		return nil, corruptf("%d entries of dimension %d do not fit in %d bytes", count, dim, len(raw))
	}

	entries := make([]model.VectorEntry, count)
	for i := range entries {
		e := &entries[i]
		e.ID = r.str()
		e.Namespace = r.str()
		e.Type = r.str()
		e.Vector = r.floats(dim)
		meta := r.bytes(int(r.u32()))
		if r.err != nil {
			return nil, r.err
		}
		if len(meta) > 0 {
			var doc metadata.Document
			if err := codec.Default.Unmarshal(meta, &doc); err != nil {
				return nil, fmt.Errorf("%w: entry %q metadata: %w", ErrCorrupt, e.ID, err)
			}
			e.Metadata = doc
		}
	}
	if r.off != len(raw) {
		return nil, corruptf("%d trailing bytes", len(raw)-r.off)
	}

	return newParsedPartition(key, dim, entries), nil
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// reader is a sticky-error little-endian cursor.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = corruptf("unexpected end of payload at offset %d", r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) str() string {
	b := r.take(2)
	if b == nil {
		return ""
	}
	return string(r.take(int(binary.LittleEndian.Uint16(b))))
}

func (r *reader) bytes(n int) []byte {
	return r.take(n)
}

func (r *reader) floats(n int) []float32 {
	b := r.take(n * 4)
	if b == nil {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
