// Package compress wraps the block compressors used for partition payloads.
package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used.
type Type uint8

const (
	// None stores the payload as is.
	None Type = 0
	// LZ4 is LZ4 block compression (fast, good for hot data).
	LZ4 Type = 1
	// ZSTD is ZSTD block compression (better ratio, good for cold data).
	ZSTD Type = 2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Parse parses a compression name as produced by Type.String.
func Parse(s string) (Type, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("unknown compression %q", s)
	}
}

// ErrSizeMismatch is returned when a block does not decompress to its declared size.
var ErrSizeMismatch = errors.New("compress: decompressed size mismatch")

// ErrSizeLimit is returned when a declared size cannot be produced from the
// compressed block or exceeds MaxDecodedSize.
var ErrSizeLimit = errors.New("compress: declared size out of bounds")

// MaxDecodedSize caps the uncompressed size of a single block.
const MaxDecodedSize = 1 << 30

// An LZ4 block expands at most 255 bytes per input byte plus a small
// constant for the final literals.
const (
	lz4MaxRatio = 255
	lz4Slack    = 64
)

// zstdPrealloc limits the buffer reserved up front for a zstd block.
const zstdPrealloc = 64

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedSize))
	return dec
}

// Compress compresses data with t.
//
// It returns None and the input unchanged when compression does not save at
// least 10%, so callers must record the returned type.
func Compress(data []byte, t Type) ([]byte, Type, error) {
	if t == None || len(data) == 0 {
		return data, None, nil
	}

	var compressed []byte
	switch t {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, None, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, None, fmt.Errorf("compress: unsupported type %v", t)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		return data, None, nil
	}
	return compressed, t, nil
}

// CheckSize reports whether a block of len(data) bytes compressed with t can
// decode to size bytes. It lets callers reject a corrupt length before
// anything is allocated.
func CheckSize(data []byte, t Type, size int) error {
	if size < 0 || size > MaxDecodedSize {
		return fmt.Errorf("%w: %d bytes", ErrSizeLimit, size)
	}
	switch t {
	case None:
		if len(data) != size {
			return ErrSizeMismatch
		}
	case LZ4:
		if size > len(data)*lz4MaxRatio+lz4Slack {
			return fmt.Errorf("%w: %d bytes from a %d byte lz4 block", ErrSizeLimit, size, len(data))
		}
	}
	return nil
}

// Decompress reverses Compress. size is the uncompressed length.
func Decompress(data []byte, t Type, size int) ([]byte, error) {
	if err := CheckSize(data, t, size); err != nil {
		return nil, err
	}
	switch t {
	case None:
		return data, nil
	case LZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(data, make([]byte, 0, min(size, len(data)*zstdPrealloc)))
		if err != nil {
			return nil, err
		}
		if len(out) != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compress: unsupported type %v", t)
	}
}
