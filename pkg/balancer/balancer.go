package balancer

import (
	"strconv"

	"github.com/lk2023060901/aioserver/pkg/registry"
)

// MetadataWeight 服务元数据中的权重字段
const MetadataWeight = "weight"

// PickInfo 选择时的上下文信息
type PickInfo struct {
	// Key 一致性哈希使用的 key，例如玩家或设备标识
	Key string
}

// Balancer 负载均衡器，从服务实例中选择一个
type Balancer interface {
	// Pick 没有可选实例时返回 nil
	Pick(nodes []*registry.ServiceInfo, info PickInfo) *registry.ServiceInfo
}

// Builder 负载均衡器构建器
type Builder interface {
	Build() Balancer
	Name() string
}

// weightOf 元数据中的权重，缺省或非法时为 1
func weightOf(n *registry.ServiceInfo) int {
	w, err := strconv.Atoi(n.Metadata[MetadataWeight])
	if err != nil || w <= 0 {
		return 1
	}
	return w
}
