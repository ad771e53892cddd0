package balancer

import (
	"math/rand/v2"

	"github.com/lk2023060901/aioserver/pkg/registry"
)

const RandomName = "random"

type randomBuilder struct{}

func (randomBuilder) Build() Balancer { return randomBalancer{} }
func (randomBuilder) Name() string    { return RandomName }

type randomBalancer struct{}

func (randomBalancer) Pick(nodes []*registry.ServiceInfo, _ PickInfo) *registry.ServiceInfo {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[rand.IntN(len(nodes))]
}
