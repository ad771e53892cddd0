package etcd

import "errors"

var (
	ErrInvalidConfig = errors.New("etcd: invalid config")
	ErrRegistered    = errors.New("etcd: service already registered")
)
