package balancer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lk2023060901/aioserver/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodes(addrs ...string) []*registry.ServiceInfo {
	out := make([]*registry.ServiceInfo, len(addrs))
	for i, a := range addrs {
		name, weight, _ := strings.Cut(a, "/")
		n := &registry.ServiceInfo{ServiceName: "echo", Address: name}
		if weight != "" {
			n.Metadata = map[string]string{MetadataWeight: weight}
		}
		out[i] = n
	}
	return out
}

func TestBuiltins(t *testing.T) {
	for _, name := range []string{RandomName, RoundRobinName, WeightedName, ConsistentHashName} {
		b := New(name)
		require.NotNil(t, b, name)
		assert.Nil(t, b.Pick(nil, PickInfo{Key: "k"}), name)
	}
	assert.Nil(t, New("least_conn"))
}

func TestRoundRobin(t *testing.T) {
	b := New(RoundRobinName)
	ns := nodes("a", "b", "c")

	var got []string
	for range 6 {
		got = append(got, b.Pick(ns, PickInfo{}).Address)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestRandom(t *testing.T) {
	b := New(RandomName)
	ns := nodes("a", "b", "c")
	seen := map[string]int{}
	for range 300 {
		seen[b.Pick(ns, PickInfo{}).Address]++
	}
	assert.Len(t, seen, 3)
}

func TestWeightedSmooth(t *testing.T) {
	b := New(WeightedName)
	ns := nodes("A/5", "B/1", "C/1")

	var got []string
	for range 7 {
		got = append(got, b.Pick(ns, PickInfo{}).Address)
	}
	assert.Equal(t, []string{"A", "A", "B", "A", "C", "A", "A"}, got)
}

func TestWeightedForgetsRemovedNodes(t *testing.T) {
	b := New(WeightedName).(*weightedBalancer)
	b.Pick(nodes("a", "b", "c"), PickInfo{})
	b.Pick(nodes("a", "b"), PickInfo{})
	assert.Len(t, b.current, 2)
}

func TestConsistentHash(t *testing.T) {
	b := New(ConsistentHashName)
	ns := nodes("a", "b", "c", "d")

	assert.Nil(t, b.Pick(ns, PickInfo{}))

	owners := map[string]string{}
	for i := range 100 {
		key := fmt.Sprintf("player-%d", i)
		owners[key] = b.Pick(ns, PickInfo{Key: key}).Address
		assert.Equal(t, owners[key], b.Pick(ns, PickInfo{Key: key}).Address)
	}

	// 移除一个实例，只有原本落在它上面的 key 会迁移
	reduced := nodes("a", "b", "c")
	for key, owner := range owners {
		got := b.Pick(reduced, PickInfo{Key: key}).Address
		if owner != "d" {
			assert.Equal(t, owner, got, key)
		}
	}
}
