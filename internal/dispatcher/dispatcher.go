package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/engines/placement"
	"github.com/llm-d/llm-d-edge-placement/internal/logging"
	"github.com/llm-d/llm-d-edge-placement/internal/metrics"
)

var (
	// ErrUnknownAction is reported for calls whose function name is not deploy, migrate or stop.
	ErrUnknownAction = errors.New("function not recognized")
	// ErrInvalidArguments is reported for calls with a missing app name or a non-numeric KPI target.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// noNode is the marker printed when an application does not run anywhere.
const noNode = "None"

// Result is the outcome of one dispatched call.
type Result struct {
	Action  v1alpha1.ActionName
	AppName string
	// State is the human-readable status message.
	State string
	// ChosenNode is a node identifier or a decision sentinel.
	ChosenNode string
	// CurrentNode is the node hosting the application before the call, empty if none.
	CurrentNode string
	RequestID   string
	// Outcome is one of the metrics outcome label values.
	Outcome string
	// Candidates lists the ranked nodes of a placement, best first.
	Candidates []string
	// Err is set for unknown applications, categories and actions and for invalid arguments.
	Err error
}

// Placed reports whether the call selected a node.
func (r Result) Placed() bool {
	return r.Outcome == metrics.OutcomePlaced
}

// DispatcherConfig holds configuration for the Dispatcher.
type DispatcherConfig struct {
	// Engine makes placement decisions. Required.
	Engine placement.Engine
	// Recorder defaults to a no-op recorder.
	Recorder metrics.Recorder
	// Clock defaults to the real clock.
	Clock clock.PassiveClock
}

// Dispatcher routes calls to the placement engine. It is stateless and safe
// for concurrent use.
type Dispatcher struct {
	engine   placement.Engine
	recorder metrics.Recorder
	clock    clock.PassiveClock
}

// NewDispatcher creates a new Dispatcher instance.
func NewDispatcher(cfg *DispatcherConfig) (*Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("placement engine cannot be nil")
	}
	d := &Dispatcher{
		engine:   cfg.Engine,
		recorder: cfg.Recorder,
		clock:    cfg.Clock,
	}
	if d.recorder == nil {
		d.recorder = metrics.NewNoopRecorder()
	}
	if d.clock == nil {
		d.clock = clock.RealClock{}
	}
	return d, nil
}

type requestIDKey struct{}

// WithRequestID returns a context carrying id as the request identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request identifier carried by ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Dispatch executes call against snapshot. It never fails: problems are
// reported through the result message, sentinel and Err.
func (d *Dispatcher) Dispatch(ctx context.Context, call v1alpha1.FunctionCall, snapshot placement.Snapshot) Result {
	start := d.clock.Now()

	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = WithRequestID(ctx, requestID)
	}
	logger := ctrl.LoggerFrom(ctx).WithValues("requestID", requestID, "action", call.FunctionName)
	ctx = ctrl.LoggerInto(ctx, logger)

	var res Result
	switch call.FunctionName {
	case v1alpha1.ActionDeploy, v1alpha1.ActionMigrate:
		res = d.place(ctx, call, snapshot)
	case v1alpha1.ActionStop:
		res = d.stop(call, snapshot)
	default:
		res = Result{
			Action:     call.FunctionName,
			State:      fmt.Sprintf("Function %s not recognized.", call.FunctionName),
			ChosenNode: v1alpha1.NotApplicable,
			Outcome:    metrics.OutcomeUnknownAction,
			Err:        fmt.Errorf("%w: %s", ErrUnknownAction, call.FunctionName),
		}
		logger.Info("Function not recognized")
	}
	res.RequestID = requestID

	d.recorder.ObserveDecision(actionLabel(res.Action), res.Outcome, d.clock.Since(start))
	logger.V(logging.DEBUG).Info("Call dispatched",
		"app", res.AppName,
		"outcome", res.Outcome,
		"chosenNode", res.ChosenNode)
	return res
}

func (d *Dispatcher) place(ctx context.Context, call v1alpha1.FunctionCall, snapshot placement.Snapshot) Result {
	logger := ctrl.LoggerFrom(ctx)
	res := Result{Action: call.FunctionName, ChosenNode: v1alpha1.NotApplicable}

	appName, err := appNameArg(call.Args)
	if err != nil {
		return invalidArguments(res, err)
	}
	res.AppName = appName

	targets, err := parseTargets(logger, call.Args)
	if err != nil {
		return invalidArguments(res, err)
	}

	req := placement.PlacementRequest{AppName: appName, Targets: targets}
	if call.FunctionName == v1alpha1.ActionMigrate {
		req.CurrentNodeID, _ = FindHostingNode(appName, snapshot.Nodes)
	}
	res.CurrentNode = req.CurrentNodeID

	decision, err := d.engine.Place(ctx, req, snapshot)
	res.ChosenNode = decision.NodeID
	res.Candidates = decision.Candidates
	res.Err = err

	switch {
	case errors.Is(err, placement.ErrApplicationNotFound):
		res.State = fmt.Sprintf("Application %s not found in the dataset.", appName)
		res.Outcome = metrics.OutcomeApplicationNotFound
	case errors.Is(err, placement.ErrCategoryNotRecognized):
		res.State = fmt.Sprintf("Application category %s not recognized.", decision.Category)
		res.Outcome = metrics.OutcomeCategoryNotRecognized
		logger.Error(err, "Cannot place application", "app", appName, "category", decision.Category)
	case err != nil:
		// engines other than Placer may fail in ways the sentinels do not cover
		res.ChosenNode = v1alpha1.NoNodesAvailable
		res.State = noNodesMessage(call.FunctionName, appName)
		res.Outcome = metrics.OutcomeNoNodes
		logger.Error(err, "Placement failed", "app", appName)
	case !decision.Placed():
		res.ChosenNode = v1alpha1.NoNodesAvailable
		res.State = noNodesMessage(call.FunctionName, appName)
		res.Outcome = metrics.OutcomeNoNodes
	case call.FunctionName == v1alpha1.ActionMigrate:
		res.State = fmt.Sprintf("Application %s will be migrated from node %s to edge node %s.",
			appName, nodeOrNone(req.CurrentNodeID), decision.NodeID)
		res.Outcome = metrics.OutcomePlaced
	default:
		res.State = fmt.Sprintf("Application %s will be deployed on edge node %s.", appName, decision.NodeID)
		res.Outcome = metrics.OutcomePlaced
	}
	return res
}

func (d *Dispatcher) stop(call v1alpha1.FunctionCall, snapshot placement.Snapshot) Result {
	appName, err := appNameArg(call.Args)
	if err != nil {
		return invalidArguments(Result{Action: call.FunctionName, ChosenNode: v1alpha1.NotApplicable}, err)
	}
	return Stop(appName, snapshot.Nodes)
}

// Stop reports where appName will be stopped. Stopping an application that
// runs nowhere is not an error.
func Stop(appName string, nodes []v1alpha1.EdgeNode) Result {
	current, _ := FindHostingNode(appName, nodes)
	return Result{
		Action:      v1alpha1.ActionStop,
		AppName:     appName,
		State:       fmt.Sprintf("Application %s will be stopped from node %s.", appName, nodeOrNone(current)),
		ChosenNode:  v1alpha1.NotApplicable,
		CurrentNode: current,
		Outcome:     metrics.OutcomeStopped,
	}
}

// FindHostingNode returns the first node whose usage record lists appName.
func FindHostingNode(appName string, nodes []v1alpha1.EdgeNode) (string, bool) {
	for i := range nodes {
		if nodes[i].HostsApp(appName) {
			return nodes[i].NodeID, true
		}
	}
	return "", false
}

func invalidArguments(res Result, err error) Result {
	res.Err = fmt.Errorf("%w for %s: %w", ErrInvalidArguments, res.Action, err)
	res.State = fmt.Sprintf("Invalid arguments for %s: %v.", res.Action, err)
	res.ChosenNode = v1alpha1.NotApplicable
	res.Outcome = metrics.OutcomeInvalidArguments
	return res
}

func noNodesMessage(action v1alpha1.ActionName, appName string) string {
	verb := "deploy"
	if action == v1alpha1.ActionMigrate {
		verb = "migrate"
	}
	return fmt.Sprintf("No edge nodes available to %s application %s with the specified requirements.", verb, appName)
}

// actionLabel bounds the metric label to the known actions.
func actionLabel(action v1alpha1.ActionName) string {
	switch action {
	case v1alpha1.ActionDeploy, v1alpha1.ActionMigrate, v1alpha1.ActionStop:
		return string(action)
	}
	return "unknown"
}

func nodeOrNone(nodeID string) string {
	if nodeID == "" {
		return noNode
	}
	return nodeID
}
