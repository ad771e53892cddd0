package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression 帧负载压缩算法
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
	CompressionZstd   Compression = "zstd"
	CompressionLZ4    Compression = "lz4"
)

// errIncompressible 压缩后不比原文小，按原文发送
var errIncompressible = errors.New("codec: incompressible")

type compressor interface {
	compress(src []byte) ([]byte, error)
	// decompress 解压后的长度超过 limit 时返回 ErrFrameTooLarge
	decompress(src []byte, limit int) ([]byte, error)
}

func newCompressor(c Compression, limit int) (compressor, error) {
	switch c {
	case "", CompressionNone:
		return nil, nil
	case CompressionSnappy:
		return snappyCompressor{}, nil
	case CompressionZstd:
		return newZstdCompressor(limit)
	case CompressionLZ4:
		return lz4Compressor{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
}

type snappyCompressor struct{}

func (snappyCompressor) compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCompressor) decompress(src []byte, limit int) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, ErrFrameTooLarge
	}
	return snappy.Decode(nil, src)
}

// zstdCompressor 编解码器可并发使用 EncodeAll/DecodeAll
type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCompressor(limit int) (*zstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)))
	if err != nil {
		encoder.Close()
		return nil, err
	}
	return &zstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCompressor) compress(src []byte) ([]byte, error) {
	return c.encoder.EncodeAll(src, nil), nil
}

func (c *zstdCompressor) decompress(src []byte, limit int) ([]byte, error) {
	out, err := c.decoder.DecodeAll(src, nil)
	if err != nil {
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
			return nil, ErrFrameTooLarge
		}
		return nil, err
	}
	if len(out) > limit {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}

// lz4Compressor 块格式前 4 字节为原文长度
type lz4Compressor struct{}

func (lz4Compressor) compress(src []byte) ([]byte, error) {
	dst := make([]byte, 4+lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst[4:], nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errIncompressible
	}
	binary.BigEndian.PutUint32(dst[:4], uint32(len(src)))
	return dst[:4+n], nil
}

func (lz4Compressor) decompress(src []byte, limit int) ([]byte, error) {
	if len(src) < 4 {
		return nil, ErrCorruptFrame
	}
	size := int(binary.BigEndian.Uint32(src[:4]))
	if size > limit {
		return nil, ErrFrameTooLarge
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src[4:], dst)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, ErrCorruptFrame
	}
	return dst, nil
}
