package placement

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/config"
)

// FilterByKPIs removes the candidates that miss any target on a KPI of the
// profile. Targets on KPIs outside the profile are ignored. A candidate that
// does not report a targeted KPI fails that target. The survivors keep their
// input order.
func FilterByKPIs(
	candidates []v1alpha1.EdgeNode,
	profile config.CategoryProfile,
	targets map[v1alpha1.KPIName]float64,
) []v1alpha1.EdgeNode {
	byID := make(map[string]*v1alpha1.EdgeNode, len(candidates))
	remaining := sets.New[string]()
	for i := range candidates {
		byID[candidates[i].NodeID] = &candidates[i]
		remaining.Insert(candidates[i].NodeID)
	}

	for _, pref := range profile.KPIs {
		target, ok := targets[pref.Name]
		if !ok {
			continue
		}
		for _, id := range remaining.UnsortedList() {
			if !meetsTarget(byID[id], pref, target) {
				remaining.Delete(id)
			}
		}
	}

	out := make([]v1alpha1.EdgeNode, 0, remaining.Len())
	for i := range candidates {
		if remaining.Has(candidates[i].NodeID) {
			out = append(out, candidates[i])
		}
	}
	return out
}

func meetsTarget(node *v1alpha1.EdgeNode, pref config.KPIPreference, target float64) bool {
	value, ok := node.KPI(pref.Name)
	if !ok {
		return false
	}
	if pref.Direction == config.LowerIsBetter {
		return value <= target
	}
	return value >= target
}
