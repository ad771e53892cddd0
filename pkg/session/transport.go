package session

import "net"

// Transport 基于完成回调的连接抽象。
//
// AsyncRead/AsyncWrite 立即返回，操作完成后在任意 goroutine 上调用 done。
// 返回错误表示操作未能发起，此时 done 不会被调用。
// done 的 err 非 nil 时 n 为 0，对端关闭时 err 为 io.EOF。
// AsyncWrite 要么写完 p，要么以错误完成；完成之前调用方不会复用 p。
type Transport interface {
	IsOpen() bool
	AsyncRead(p []byte, done func(n int, err error)) error
	AsyncWrite(p []byte, done func(n int, err error)) error
	RemoteAddr() (net.Addr, error)
	Close() error
}

// Registry 会话关闭时的注销通知，每个会话只调用一次。
type Registry interface {
	Remove(id string)
}
