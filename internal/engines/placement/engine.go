package placement

import (
	"context"
	"errors"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/config"
	"github.com/llm-d/llm-d-edge-placement/internal/logging"
)

var (
	// ErrApplicationNotFound is returned when the application is absent from the snapshot.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrCategoryNotRecognized is returned when no KPI profile exists for the application category.
	ErrCategoryNotRecognized = errors.New("application category not recognized")
)

// Engine decides where an application should run.
type Engine interface {
	// Place selects a node for the request. A decision without a suitable node
	// is not an error; it carries the NO_NODES_AVAILABLE sentinel.
	Place(ctx context.Context, req PlacementRequest, snapshot Snapshot) (Decision, error)
}

// Snapshot is the read-only state a decision is made against.
type Snapshot struct {
	Applications v1alpha1.ApplicationTable
	Nodes        []v1alpha1.EdgeNode
}

// PlacementRequest names the application to place and the user KPI targets.
type PlacementRequest struct {
	AppName string
	Targets map[v1alpha1.KPIName]float64
	// CurrentNodeID is the node a migrating application runs on. It is never chosen.
	// Empty for deployments.
	CurrentNodeID string
}

// Decision is the outcome of a placement.
type Decision struct {
	// NodeID is the chosen node or one of the decision sentinels.
	NodeID string
	// Category is the traffic category of the application, when it was found.
	Category v1alpha1.TrafficCategory
	// Candidates lists the ranked survivors, best first.
	Candidates []string
}

// Placed reports whether the decision names a real node.
func (d Decision) Placed() bool {
	return d.NodeID != "" && !v1alpha1.IsSentinel(d.NodeID)
}

// PlacerConfig holds configuration for the Placer.
type PlacerConfig struct {
	// Profiles are the KPI profiles per traffic category. Defaults to the built-in profiles.
	Profiles *config.KPIProfiles
}

// Placer implements Engine with capacity filtering, KPI filtering and
// category ranking. It is safe for concurrent use.
type Placer struct {
	config *PlacerConfig
}

var _ Engine = &Placer{}

// NewPlacer creates a new Placer instance.
func NewPlacer(cfg *PlacerConfig) (*Placer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Profiles == nil {
		cfg.Profiles = config.DefaultKPIProfiles()
	}
	return &Placer{
		config: cfg,
	}, nil
}

// Place selects the best node for the application. Unknown applications and
// categories are reported both as an error and as a sentinel decision.
func (p *Placer) Place(ctx context.Context, req PlacementRequest, snapshot Snapshot) (Decision, error) {
	logger := ctrl.LoggerFrom(ctx).WithValues("app", req.AppName)

	app, ok := snapshot.Applications[req.AppName]
	if !ok {
		return Decision{NodeID: v1alpha1.ApplicationNotFound},
			fmt.Errorf("%w: %s", ErrApplicationNotFound, req.AppName)
	}
	decision := Decision{NodeID: v1alpha1.NoNodesAvailable, Category: app.Category}

	candidates := SelectCapacityEligible(snapshot.Nodes, app.MinRequirements, req.CurrentNodeID)
	logger.V(logging.DEBUG).Info("Capacity filter applied",
		"requiredCPU", app.MinRequirements.CPUCores,
		"requiredRAM", app.MinRequirements.RAMGB,
		"excluded", req.CurrentNodeID,
		"eligible", NodeIDs(candidates))
	if len(candidates) == 0 {
		return decision, nil
	}

	profile, ok := p.config.Profiles.Profile(app.Category)
	if !ok {
		decision.NodeID = v1alpha1.CategoryNotRecognized
		return decision, fmt.Errorf("%w: %s", ErrCategoryNotRecognized, app.Category)
	}

	if len(req.Targets) > 0 {
		candidates = FilterByKPIs(candidates, profile, req.Targets)
		logger.V(logging.DEBUG).Info("KPI filter applied",
			"targets", req.Targets,
			"remaining", NodeIDs(candidates))
		if len(candidates) == 0 {
			return decision, nil
		}
	}

	ranked := Rank(candidates, profile)
	decision.Candidates = NodeIDs(ranked)
	decision.NodeID = ranked[0].NodeID
	logger.V(logging.TRACE).Info("Candidates ranked",
		"category", app.Category,
		"ranking", decision.Candidates)
	return decision, nil
}
