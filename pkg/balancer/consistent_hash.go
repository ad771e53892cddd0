package balancer

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/lk2023060901/aioserver/pkg/registry"
)

const (
	ConsistentHashName  = "consistent_hash"
	defaultVirtualNodes = 150
)

type consistentHashBuilder struct {
	virtualNodes int
}

func (b consistentHashBuilder) Build() Balancer {
	return &consistentHashBalancer{virtualNodes: b.virtualNodes}
}
func (consistentHashBuilder) Name() string { return ConsistentHashName }

// consistentHashBalancer 一致性哈希，相同 Key 在实例列表不变时总是落到同一实例。
// Key 为空时返回 nil。
type consistentHashBalancer struct {
	virtualNodes int

	mu      sync.Mutex
	ring    *hashRing
	members string
}

func (b *consistentHashBalancer) Pick(nodes []*registry.ServiceInfo, info PickInfo) *registry.ServiceInfo {
	if len(nodes) == 0 || info.Key == "" {
		return nil
	}

	members := memberKey(nodes)
	b.mu.Lock()
	if b.ring == nil || b.members != members {
		b.ring = newHashRing(nodes, b.virtualNodes)
		b.members = members
	}
	ring := b.ring
	b.mu.Unlock()

	return ring.get(info.Key)
}

func memberKey(nodes []*registry.ServiceInfo) string {
	addrs := make([]string, len(nodes))
	for i, n := range nodes {
		addrs[i] = n.Address
	}
	slices.Sort(addrs)
	return strings.Join(addrs, ",")
}

type hashRing struct {
	hashes []uint64
	owners map[uint64]*registry.ServiceInfo
}

func newHashRing(nodes []*registry.ServiceInfo, virtualNodes int) *hashRing {
	r := &hashRing{
		hashes: make([]uint64, 0, len(nodes)*virtualNodes),
		owners: make(map[uint64]*registry.ServiceInfo, len(nodes)*virtualNodes),
	}
	for _, n := range nodes {
		for i := range virtualNodes {
			h := xxhash.Sum64String(n.Address + "#" + strconv.Itoa(i))
			r.owners[h] = n
			r.hashes = append(r.hashes, h)
		}
	}
	slices.Sort(r.hashes)
	return r
}

// get 顺时针找到第一个不小于 key 哈希的虚拟节点
func (r *hashRing) get(key string) *registry.ServiceInfo {
	if len(r.hashes) == 0 {
		return nil
	}
	h := xxhash.Sum64String(key)
	idx, _ := slices.BinarySearch(r.hashes, h)
	if idx == len(r.hashes) {
		idx = 0
	}
	return r.owners[r.hashes[idx]]
}
