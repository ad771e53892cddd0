// Package buffer 提供会话读写周期使用的定长字节缓冲区。
//
// Buffer 有两种模式：写模式下 position 是已写入字节数，limit 等于容量；
// 调用 Flip 后进入读模式，position 归零作为读游标，limit 为已写入的字节数。
package buffer

import (
	"errors"
	"io"
)

var (
	// ErrBufferFull 写入超出缓冲区容量
	ErrBufferFull = errors.New("buffer: full")

	// ErrInvalidCommit 提交的字节数超出可写区域
	ErrInvalidCommit = errors.New("buffer: invalid commit")
)

// Buffer 定长字节缓冲区，非并发安全，同一时刻只属于一个会话。
type Buffer struct {
	data     []byte
	position int
	limit    int

	pool     *Pool
	released bool
}

// New 创建容量为 capacity 的缓冲区，处于写模式。
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{
		data:  make([]byte, capacity),
		limit: capacity,
	}
}

// Wrap 以读模式包装已有字节，不复制。
func Wrap(p []byte) *Buffer {
	return &Buffer{
		data:  p,
		limit: len(p),
	}
}

// From 复制 p 并返回读模式缓冲区。
func From(p []byte) *Buffer {
	data := make([]byte, len(p))
	copy(data, p)
	return Wrap(data)
}

// Flip 写模式切换到读模式。
func (b *Buffer) Flip() *Buffer {
	b.limit = b.position
	b.position = 0
	return b
}

// Clear 重置为空的写模式。
func (b *Buffer) Clear() *Buffer {
	b.position = 0
	b.limit = len(b.data)
	return b
}

// Compact 将未读数据移到头部并切回写模式，用于读了一半的缓冲区继续追加。
func (b *Buffer) Compact() *Buffer {
	n := copy(b.data, b.data[b.position:b.limit])
	b.position = n
	b.limit = len(b.data)
	return b
}

// Free 返回写模式下的可写区域。
func (b *Buffer) Free() []byte {
	return b.data[b.position:b.limit]
}

// Commit 确认已向 Free 返回的区域写入 n 字节。
func (b *Buffer) Commit(n int) error {
	if n < 0 || b.position+n > b.limit {
		return ErrInvalidCommit
	}
	b.position += n
	return nil
}

// Write 实现 io.Writer，空间不足时写入能容纳的部分并返回 ErrBufferFull。
func (b *Buffer) Write(p []byte) (int, error) {
	n := copy(b.data[b.position:b.limit], p)
	b.position += n
	if n < len(p) {
		return n, ErrBufferFull
	}
	return n, nil
}

// Bytes 返回读模式下尚未读取的数据，不复制。
func (b *Buffer) Bytes() []byte {
	return b.data[b.position:b.limit]
}

// Read 实现 io.Reader。
func (b *Buffer) Read(p []byte) (int, error) {
	if b.position >= b.limit {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.data[b.position:b.limit])
	b.position += n
	return n, nil
}

// Skip 跳过 n 个未读字节，超出部分截断。
func (b *Buffer) Skip(n int) {
	if n > b.Remaining() {
		n = b.Remaining()
	}
	if n > 0 {
		b.position += n
	}
}

// Remaining 返回 position 到 limit 之间的字节数。
func (b *Buffer) Remaining() int {
	if b == nil {
		return 0
	}
	return b.limit - b.position
}

// HasRemaining 是否还有未读（或可写）字节。
func (b *Buffer) HasRemaining() bool {
	return b.Remaining() > 0
}

// Position 当前游标。
func (b *Buffer) Position() int { return b.position }

// Limit 当前上限。
func (b *Buffer) Limit() int { return b.limit }

// Cap 缓冲区容量。
func (b *Buffer) Cap() int { return len(b.data) }

// Release 归还到所属的 Pool，非池化缓冲区为空操作。
// 归还后不得继续使用该缓冲区。
func (b *Buffer) Release() {
	if b == nil || b.pool == nil || b.released {
		return
	}
	b.released = true
	b.pool.put(b)
}
