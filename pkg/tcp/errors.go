package tcp

import "errors"

var (
	// 配置错误
	ErrInvalidConfig      = errors.New("tcp: invalid config")
	ErrNilPipelineFactory = errors.New("tcp: pipeline factory is nil")

	// 连接错误
	ErrReadPending        = errors.New("tcp: read already pending")
	ErrTooManyConnections = errors.New("tcp: too many connections")
	ErrRateLimited        = errors.New("tcp: accept rate limited")
	ErrNoInstance         = errors.New("tcp: no service instance available")

	// 服务器错误
	ErrServerAlreadyStarted = errors.New("tcp: server already started")
	ErrServerNotStarted     = errors.New("tcp: server not started")
	ErrStartTimeout         = errors.New("tcp: server start timeout")
)
