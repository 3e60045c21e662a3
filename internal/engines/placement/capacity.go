package placement

import (
	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
)

// SelectCapacityEligible returns, in input order, the nodes whose available
// capacity meets req on both CPU and RAM. The node named by excludeNodeID is
// dropped even when eligible; an empty excludeNodeID excludes nothing.
func SelectCapacityEligible(nodes []v1alpha1.EdgeNode, req v1alpha1.Resources, excludeNodeID string) []v1alpha1.EdgeNode {
	eligible := make([]v1alpha1.EdgeNode, 0, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		if excludeNodeID != "" && node.NodeID == excludeNodeID {
			continue
		}
		if node.Available().Fits(req) {
			eligible = append(eligible, *node)
		}
	}
	return eligible
}
