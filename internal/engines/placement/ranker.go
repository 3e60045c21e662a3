package placement

import (
	"cmp"
	"math"
	"slices"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/config"
)

// Rank returns a copy of candidates ordered best first. Nodes are compared on
// each profile KPI in profile order, lower values first for lower-is-better
// KPIs and higher values first otherwise. A missing measurement ranks worst.
// Full ties keep their input order.
func Rank(candidates []v1alpha1.EdgeNode, profile config.CategoryProfile) []v1alpha1.EdgeNode {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b v1alpha1.EdgeNode) int {
		for _, pref := range profile.KPIs {
			if c := cmp.Compare(sortKey(&a, pref), sortKey(&b, pref)); c != 0 {
				return c
			}
		}
		return 0
	})
	return ranked
}

// sortKey maps a KPI measurement to an ascending key.
func sortKey(node *v1alpha1.EdgeNode, pref config.KPIPreference) float64 {
	value, ok := node.KPI(pref.Name)
	if !ok {
		return math.Inf(1)
	}
	if pref.Direction == config.HigherIsBetter {
		return -value
	}
	return value
}

// NodeIDs lists the identifiers of nodes in order.
func NodeIDs(nodes []v1alpha1.EdgeNode) []string {
	ids := make([]string, 0, len(nodes))
	for i := range nodes {
		ids = append(ids, nodes[i].NodeID)
	}
	return ids
}
