package v1alpha1

import (
	"math"
	"slices"
)

// TrafficCategory is the 5G traffic class an application belongs to.
// The category selects the KPI profile used to filter and rank nodes.
type TrafficCategory string

const (
	// CategoryURLLC is ultra-reliable low-latency communication.
	CategoryURLLC TrafficCategory = "uRLLC"
	// CategoryEMBB is enhanced mobile broadband.
	CategoryEMBB TrafficCategory = "eMBB"
	// CategoryMMTC is massive machine-type communication.
	CategoryMMTC TrafficCategory = "mMTC"
)

// KnownCategories lists the traffic categories the placement engine understands.
var KnownCategories = []TrafficCategory{CategoryURLLC, CategoryEMBB, CategoryMMTC}

// IsKnown reports whether c is one of the fixed traffic categories.
func (c TrafficCategory) IsKnown() bool {
	return slices.Contains(KnownCategories, c)
}

// KPIName identifies a measured node KPI. The set of names is closed.
type KPIName string

const (
	// KPILatency is the round-trip latency in milliseconds.
	KPILatency KPIName = "latency_ms"
	// KPIAvailability is the node availability in percent.
	KPIAvailability KPIName = "availability_percent"
	// KPIPacketLoss is the packet loss in percent.
	KPIPacketLoss KPIName = "packet_loss_percent"
	// KPIThroughput is the sustained throughput in Mbps.
	KPIThroughput KPIName = "throughput_mbps"
	// KPIConnectionDensity is the number of devices the node can serve per area.
	KPIConnectionDensity KPIName = "connection_density"
	// KPIEnergyEfficiency is the node energy efficiency score.
	KPIEnergyEfficiency KPIName = "energy_efficiency"
)

// KnownKPIs lists every KPI name a node may report or a requester may target.
var KnownKPIs = []KPIName{
	KPILatency,
	KPIAvailability,
	KPIPacketLoss,
	KPIThroughput,
	KPIConnectionDensity,
	KPIEnergyEfficiency,
}

// IsKnown reports whether k belongs to the closed KPI set.
func (k KPIName) IsKnown() bool {
	return slices.Contains(KnownKPIs, k)
}

// Resources is an amount of CPU cores and RAM.
type Resources struct {
	// CPUCores is the number of CPU cores.
	CPUCores int `json:"cpu_cores"`
	// RAMGB is the amount of memory in gigabytes.
	RAMGB int `json:"ram_gb"`
}

// Fits reports whether r covers the requested amount on both dimensions.
func (r Resources) Fits(request Resources) bool {
	return r.CPUCores >= request.CPUCores && r.RAMGB >= request.RAMGB
}

// Application is an entry of the application table. The table key is the application identifier.
type Application struct {
	// MinRequirements is the minimum free capacity a node needs to host the application.
	MinRequirements Resources `json:"min_requirements"`

	// Category is the traffic category of the application.
	Category TrafficCategory `json:"category_5G"`

	// Description is free text used only as context for upstream parsers.
	// +optional
	Description string `json:"description,omitempty"`
}

// ApplicationTable maps application identifiers to their requirements.
type ApplicationTable map[string]Application

// NodeUsage records the capacity consumed on a node and the applications running there.
type NodeUsage struct {
	CPUCores int      `json:"cpu_cores"`
	RAMGB    int      `json:"ram_gb"`
	Apps     []string `json:"apps"`
}

// IsEmpty reports whether the usage record carries no workload.
// Datasets encode an idle node as an empty object, which decodes to the zero value.
func (u *NodeUsage) IsEmpty() bool {
	return u == nil || (u.CPUCores == 0 && u.RAMGB == 0 && len(u.Apps) == 0)
}

// EdgeNode is a snapshot of one edge-compute host.
type EdgeNode struct {
	// NodeID is unique within a scenario.
	NodeID string `json:"node_id"`

	// Capabilities is the total capacity of the node.
	Capabilities Resources `json:"server_capabilities"`

	// CurrentUsage is nil (or empty) when no workload runs on the node.
	// +optional
	CurrentUsage *NodeUsage `json:"server_current_usage,omitempty"`

	// KPIs holds the measured value of each KPI the node reports.
	KPIs map[KPIName]float64 `json:"server_kpis"`
}

// Available returns the capacity left on the node.
func (n *EdgeNode) Available() Resources {
	if n.CurrentUsage.IsEmpty() {
		return n.Capabilities
	}
	return Resources{
		CPUCores: n.Capabilities.CPUCores - n.CurrentUsage.CPUCores,
		RAMGB:    n.Capabilities.RAMGB - n.CurrentUsage.RAMGB,
	}
}

// HostsApp reports whether appName is listed in the node's usage record.
func (n *EdgeNode) HostsApp(appName string) bool {
	if n.CurrentUsage == nil {
		return false
	}
	return slices.Contains(n.CurrentUsage.Apps, appName)
}

// DeployedApps returns the applications running on the node, never nil.
func (n *EdgeNode) DeployedApps() []string {
	if n.CurrentUsage == nil || len(n.CurrentUsage.Apps) == 0 {
		return []string{}
	}
	return slices.Clone(n.CurrentUsage.Apps)
}

// KPI returns the measured value of the named KPI. Values that are not
// finite numbers are reported as missing.
func (n *EdgeNode) KPI(name KPIName) (float64, bool) {
	v, ok := n.KPIs[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ActionName is the name of a structured call produced by the upstream request parser.
type ActionName string

const (
	// ActionDeploy places an application on a new node.
	ActionDeploy ActionName = "deploy_app"
	// ActionMigrate moves an application away from the node currently hosting it.
	ActionMigrate ActionName = "migrate_app"
	// ActionStop stops an application wherever it runs.
	ActionStop ActionName = "stop_app"
)

// ArgAppName is the call argument naming the target application.
const ArgAppName = "app_name"

// FunctionCall is a structured call descriptor. Args always contains ArgAppName;
// every other argument is a KPI target whose value is a number or a numeric string.
type FunctionCall struct {
	FunctionName ActionName     `json:"function_name"`
	Args         map[string]any `json:"args"`
}

// Decision sentinels reported in place of a node identifier.
const (
	// NoNodesAvailable means no node satisfies the capacity and KPI constraints.
	NoNodesAvailable = "NO_NODES_AVAILABLE"
	// NotApplicable is reported by actions that never select a node.
	NotApplicable = "N/A"
	// ApplicationNotFound means the application is absent from the application table.
	ApplicationNotFound = "APPLICATION_NOT_FOUND"
	// CategoryNotRecognized means the application references an unknown traffic category.
	CategoryNotRecognized = "CATEGORY_NOT_RECOGNIZED"
)

// IsSentinel reports whether nodeID is one of the reserved decision values.
func IsSentinel(nodeID string) bool {
	switch nodeID {
	case NoNodesAvailable, NotApplicable, ApplicationNotFound, CategoryNotRecognized:
		return true
	}
	return false
}
