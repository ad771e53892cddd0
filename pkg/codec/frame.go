// Package codec 提供会话流水线使用的解码器与编码器。
//
// FrameCodec 的帧格式（大端）：
//
//	+----------------+-----------+------------------+-----------------+
//	| length uint32  | flags u8  | checksum uint32  | payload         |
//	+----------------+-----------+------------------+-----------------+
//
// length 为线上 payload 的字节数，checksum 覆盖线上 payload（压缩后）。
// flags 第 0 位表示 payload 经过压缩。
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lk2023060901/aioserver/pkg/buffer"
	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/lk2023060901/aioserver/pkg/session"
	"github.com/valyala/bytebufferpool"
)

const (
	// HeaderSize 帧头长度
	HeaderSize = 9

	flagCompressed byte = 1 << 0
)

// FrameConfig 帧编解码配置
type FrameConfig struct {
	// MaxFrameSize 单帧 payload 上限（压缩前后都受限）
	MaxFrameSize int `mapstructure:"max_frame_size" json:"max_frame_size" yaml:"max_frame_size" validate:"gte=1,lte=268435456"`
	// Compression 压缩算法
	Compression Compression `mapstructure:"compression" json:"compression" yaml:"compression" validate:"omitempty,oneof=none snappy zstd lz4"`
	// CompressThreshold 小于该长度的 payload 不压缩
	CompressThreshold int `mapstructure:"compress_threshold" json:"compress_threshold" yaml:"compress_threshold" validate:"gte=0"`
	// Checksum 校验算法
	Checksum Checksum `mapstructure:"checksum" json:"checksum" yaml:"checksum" validate:"omitempty,oneof=none crc32 crc32c xxhash"`
}

// DefaultFrameConfig 默认配置
func DefaultFrameConfig() *FrameConfig {
	return &FrameConfig{
		MaxFrameSize:      4 << 20,
		Compression:       CompressionNone,
		CompressThreshold: 256,
		Checksum:          ChecksumCRC32C,
	}
}

// pendingKey 会话属性中保存未成帧的剩余字节
type pendingKey struct{}

// framesKey 会话属性中保存本次解码出的各帧 payload 长度
type framesKey struct{}

var (
	_ session.Decoder = (*FrameCodec)(nil)
	_ session.Encoder = (*FrameCodec)(nil)
)

// FrameCodec 长度前缀帧编解码器，可在多个会话间共享。
// 一次读取中所有完整帧的 payload 按顺序拼接后交给处理器，各帧长度记录在会话属性中；
// 处理器输出的总长度与之相同时，编码按原边界逐帧输出。
// 不足一帧的剩余字节保存在会话属性中，等待下一次读取。
type FrameCodec struct {
	cfg        *FrameConfig
	compressor compressor
}

// NewFrameCodec 创建帧编解码器，cfg 为 nil 时使用默认配置
func NewFrameCodec(cfg *FrameConfig) (*FrameCodec, error) {
	merged, err := config.MergeConfig(DefaultFrameConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to merge config: %w", err)
	}
	if err := config.Validate(merged); err != nil {
		return nil, err
	}
	if !merged.Checksum.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChecksum, merged.Checksum)
	}

	c, err := newCompressor(merged.Compression, merged.MaxFrameSize)
	if err != nil {
		return nil, err
	}
	return &FrameCodec{cfg: merged, compressor: c}, nil
}

// Config 返回生效的配置
func (c *FrameCodec) Config() FrameConfig {
	return *c.cfg
}

// Decode 拆出所有完整帧，没有完整帧时返回 nil。
// 只含空帧时返回没有内容的缓冲区。
func (c *FrameCodec) Decode(buf *buffer.Buffer, s *session.Session) (*buffer.Buffer, error) {
	data := buf.Bytes()
	buf.Skip(buf.Remaining())
	if pending, ok := s.Value(pendingKey{}).([]byte); ok && len(pending) > 0 {
		data = append(pending, data...)
	}

	out := bytebufferpool.Get()
	defer bytebufferpool.Put(out)

	var frames []int
	for len(data) >= HeaderSize {
		length := int(binary.BigEndian.Uint32(data[0:4]))
		if length > c.cfg.MaxFrameSize {
			return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, c.cfg.MaxFrameSize)
		}
		if len(data) < HeaderSize+length {
			break
		}

		payload, err := c.open(data[4], binary.BigEndian.Uint32(data[5:9]), data[HeaderSize:HeaderSize+length])
		if err != nil {
			return nil, err
		}
		_, _ = out.Write(payload)
		frames = append(frames, len(payload))
		data = data[HeaderSize+length:]
	}

	if len(data) > 0 {
		s.SetValue(pendingKey{}, append([]byte(nil), data...))
	} else {
		s.DeleteValue(pendingKey{})
	}

	if len(frames) == 0 {
		s.DeleteValue(framesKey{})
		return nil, nil
	}
	s.SetValue(framesKey{}, frames)
	return buffer.From(out.B), nil
}

// Frames 最近一次 Decode 得到的各帧 payload 长度
func Frames(s *session.Session) []int {
	frames, _ := s.Value(framesKey{}).([]int)
	return frames
}

// Encode 把 buf 的未读内容封装为帧。内容长度等于最近一次解码的各帧长度之和时
// 按这些边界逐帧输出，否则整体作为一帧。
func (c *FrameCodec) Encode(buf *buffer.Buffer, s *session.Session) (*buffer.Buffer, error) {
	payload := buf.Bytes()
	frames := []int{len(payload)}
	if s != nil {
		if decoded := Frames(s); totalLen(decoded) == len(payload) && len(decoded) > 0 {
			frames = decoded
		}
		s.DeleteValue(framesKey{})
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	for _, n := range frames {
		if err := c.appendFrame(bb, payload[:n]); err != nil {
			return nil, err
		}
		payload = payload[n:]
	}
	buf.Skip(buf.Remaining())
	return buffer.From(bb.B), nil
}

// appendFrame 把一帧写入 bb
func (c *FrameCodec) appendFrame(bb *bytebufferpool.ByteBuffer, payload []byte) error {
	if len(payload) > c.cfg.MaxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), c.cfg.MaxFrameSize)
	}

	var flags byte
	if c.compressor != nil && len(payload) >= c.cfg.CompressThreshold {
		compressed, err := c.compressor.compress(payload)
		switch {
		case errors.Is(err, errIncompressible):
		case err != nil:
			return fmt.Errorf("codec: compress: %w", err)
		case len(compressed) < len(payload):
			payload = compressed
			flags |= flagCompressed
		}
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(payload)))
	header[4] = flags
	binary.BigEndian.PutUint32(header[5:9], c.cfg.Checksum.sum(payload))
	_, _ = bb.Write(header[:])
	_, _ = bb.Write(payload)
	return nil
}

func totalLen(frames []int) int {
	total := 0
	for _, n := range frames {
		total += n
	}
	return total
}

// open 校验并解压一帧的 payload
func (c *FrameCodec) open(flags byte, sum uint32, payload []byte) ([]byte, error) {
	if got := c.cfg.Checksum.sum(payload); got != sum {
		return nil, fmt.Errorf("%w: got %08x want %08x", ErrChecksumMismatch, got, sum)
	}
	if flags&flagCompressed == 0 {
		return payload, nil
	}
	if c.compressor == nil {
		return nil, fmt.Errorf("%w: compressed frame without compression", ErrCorruptFrame)
	}
	out, err := c.compressor.decompress(payload, c.cfg.MaxFrameSize)
	if err != nil {
		if errors.Is(err, ErrFrameTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	return out, nil
}

// Passthrough 恒等解码器与编码器
type Passthrough struct{}

var (
	_ session.Decoder = Passthrough{}
	_ session.Encoder = Passthrough{}
)

func (Passthrough) Decode(buf *buffer.Buffer, _ *session.Session) (*buffer.Buffer, error) {
	return buf, nil
}

func (Passthrough) Encode(buf *buffer.Buffer, _ *session.Session) (*buffer.Buffer, error) {
	return buf, nil
}
