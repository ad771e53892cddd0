package balancer

import (
	"sync"

	"github.com/lk2023060901/aioserver/pkg/registry"
)

const WeightedName = "weighted"

type weightedBuilder struct{}

func (weightedBuilder) Build() Balancer {
	return &weightedBalancer{current: make(map[string]int)}
}
func (weightedBuilder) Name() string { return WeightedName }

// weightedBalancer 平滑加权轮询：每次所有实例 current += weight，
// 选 current 最大者并减去总权重。A(5) B(1) C(1) 的选择序列为 A A B A C A A。
type weightedBalancer struct {
	mu      sync.Mutex
	current map[string]int
}

func (b *weightedBalancer) Pick(nodes []*registry.ServiceInfo, _ PickInfo) *registry.ServiceInfo {
	if len(nodes) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	var best *registry.ServiceInfo
	for _, n := range nodes {
		w := weightOf(n)
		total += w
		b.current[n.Address] += w
		if best == nil || b.current[n.Address] > b.current[best.Address] {
			best = n
		}
	}
	b.current[best.Address] -= total

	// 已下线实例不再保留状态
	if len(b.current) > len(nodes) {
		live := make(map[string]struct{}, len(nodes))
		for _, n := range nodes {
			live[n.Address] = struct{}{}
		}
		for addr := range b.current {
			if _, ok := live[addr]; !ok {
				delete(b.current, addr)
			}
		}
	}
	return best
}
