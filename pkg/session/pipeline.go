package session

import "github.com/lk2023060901/aioserver/pkg/buffer"

// Decoder 把读到的原始字节转换为处理器的输入。
// 返回空缓冲区表示帧不完整，会话跳过处理直接继续读；
// 返回 ErrEndOfStream 表示不会再有数据，会话直接关闭。
type Decoder interface {
	Decode(buf *buffer.Buffer, s *Session) (*buffer.Buffer, error)
}

// Processor 通过 s.Buffer() 读取解码结果，通过修改缓冲区或 s.SetBuffer 发布输出。
// emit 为 true 时会话编码并写出 s.Buffer()。
type Processor interface {
	Process(s *Session) (emit bool, err error)
}

// Encoder 把处理器输出序列化为待写出的字节。
type Encoder interface {
	Encode(buf *buffer.Buffer, s *Session) (*buffer.Buffer, error)
}

// DecoderFunc 函数适配器
type DecoderFunc func(buf *buffer.Buffer, s *Session) (*buffer.Buffer, error)

func (f DecoderFunc) Decode(buf *buffer.Buffer, s *Session) (*buffer.Buffer, error) {
	return f(buf, s)
}

// ProcessorFunc 函数适配器
type ProcessorFunc func(s *Session) (bool, error)

func (f ProcessorFunc) Process(s *Session) (bool, error) {
	return f(s)
}

// EncoderFunc 函数适配器
type EncoderFunc func(buf *buffer.Buffer, s *Session) (*buffer.Buffer, error)

func (f EncoderFunc) Encode(buf *buffer.Buffer, s *Session) (*buffer.Buffer, error) {
	return f(buf, s)
}

// Pipeline 三个阶段的组合。阶段对象在会话间共享，会话级状态放在 Session 属性中。
type Pipeline struct {
	Decoder   Decoder
	Processor Processor
	Encoder   Encoder
}

// Register 绑定到会话
func (p Pipeline) Register(s *Session) error {
	return s.RegisterPipeline(p.Decoder, p.Processor, p.Encoder)
}

// PipelineFactory 为新会话构造流水线
type PipelineFactory func(s *Session) Pipeline
