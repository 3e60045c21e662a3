package placement

import (
	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
)

func idleNode(id string, cpu, ram int, kpis map[v1alpha1.KPIName]float64) v1alpha1.EdgeNode {
	return v1alpha1.EdgeNode{
		NodeID:       id,
		Capabilities: v1alpha1.Resources{CPUCores: cpu, RAMGB: ram},
		CurrentUsage: &v1alpha1.NodeUsage{},
		KPIs:         kpis,
	}
}

func busyNode(id string, cpu, ram, usedCPU, usedRAM int, apps []string, kpis map[v1alpha1.KPIName]float64) v1alpha1.EdgeNode {
	n := idleNode(id, cpu, ram, kpis)
	n.CurrentUsage = &v1alpha1.NodeUsage{CPUCores: usedCPU, RAMGB: usedRAM, Apps: apps}
	return n
}

func urllcKPIs(latency, availability, loss float64) map[v1alpha1.KPIName]float64 {
	return map[v1alpha1.KPIName]float64{
		v1alpha1.KPILatency:      latency,
		v1alpha1.KPIAvailability: availability,
		v1alpha1.KPIPacketLoss:   loss,
	}
}

// scenarioA is the reference two-node uRLLC setup.
func scenarioA() Snapshot {
	return Snapshot{
		Applications: v1alpha1.ApplicationTable{
			"teleop": {
				MinRequirements: v1alpha1.Resources{CPUCores: 2, RAMGB: 4},
				Category:        v1alpha1.CategoryURLLC,
			},
		},
		Nodes: []v1alpha1.EdgeNode{
			idleNode("Node1", 4, 8, urllcKPIs(10, 99.9, 0.1)),
			idleNode("Node2", 4, 8, urllcKPIs(5, 99.99, 0.05)),
		},
	}
}
