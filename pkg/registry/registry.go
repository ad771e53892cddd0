package registry

import "context"

// ServiceInfo 服务信息
type ServiceInfo struct {
	// ServiceName 服务名称
	ServiceName string `json:"service_name"`
	// Address 服务地址（如 192.168.1.10:9000）
	Address string `json:"address"`
	// Metadata 元数据（如 version, weight, framing 等）
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Registrar 服务注册接口
type Registrar interface {
	// Register 注册服务
	Register(ctx context.Context, info *ServiceInfo) error
	// Deregister 取消注册
	Deregister(ctx context.Context) error
}

// Resolver 服务发现接口
type Resolver interface {
	// Resolve 解析服务地址列表
	Resolve(ctx context.Context, serviceName string) ([]*ServiceInfo, error)
	// Watch 监听服务变化，ctx 结束时关闭返回的通道
	Watch(ctx context.Context, serviceName string) (<-chan []*ServiceInfo, error)
}
