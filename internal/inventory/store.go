// Package inventory owns the live, mutable edge inventory and applies
// placement decisions to it.
package inventory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/dispatcher"
	"github.com/llm-d/llm-d-edge-placement/internal/engines/placement"
	"github.com/llm-d/llm-d-edge-placement/internal/metrics"
)

// Dispatcher executes a call against a snapshot.
type Dispatcher interface {
	Dispatch(ctx context.Context, call v1alpha1.FunctionCall, snapshot placement.Snapshot) dispatcher.Result
}

// Store holds the application table and the node inventory. Decisions are
// made and committed under one lock so that concurrent calls never fill the
// same capacity twice.
type Store struct {
	mu       sync.RWMutex
	apps     v1alpha1.ApplicationTable
	nodes    []v1alpha1.EdgeNode
	recorder metrics.Recorder
}

// NewStore creates a store from copies of apps and nodes.
func NewStore(apps v1alpha1.ApplicationTable, nodes []v1alpha1.EdgeNode, recorder metrics.Recorder) *Store {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	s := &Store{
		apps:     apps.DeepCopy(),
		nodes:    v1alpha1.DeepCopyNodes(nodes),
		recorder: recorder,
	}
	recorder.SetInventoryNodes(len(s.nodes))
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() placement.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() placement.Snapshot {
	return placement.Snapshot{
		Applications: s.apps.DeepCopy(),
		Nodes:        v1alpha1.DeepCopyNodes(s.nodes),
	}
}

// Execute dispatches call against the current state and commits the result.
func (s *Store) Execute(ctx context.Context, d Dispatcher, call v1alpha1.FunctionCall) dispatcher.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := d.Dispatch(ctx, call, s.snapshotLocked())
	if err := s.commitLocked(res); err != nil {
		ctrl.LoggerFrom(ctx).Error(err, "Failed to commit decision",
			"requestID", res.RequestID,
			"app", res.AppName)
	}
	return res
}

// Commit applies a dispatched result to the inventory. Results that carry no
// placement or stop are ignored.
func (s *Store) Commit(res dispatcher.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(res)
}

func (s *Store) commitLocked(res dispatcher.Result) error {
	if res.Err != nil {
		return nil
	}
	switch res.Action {
	case v1alpha1.ActionDeploy:
		if !res.Placed() {
			return nil
		}
		return s.deploy(res.AppName, res.ChosenNode)
	case v1alpha1.ActionMigrate:
		if !res.Placed() {
			return nil
		}
		if res.CurrentNode != "" {
			if err := s.release(res.AppName, res.CurrentNode); err != nil {
				return err
			}
		}
		return s.deploy(res.AppName, res.ChosenNode)
	case v1alpha1.ActionStop:
		if res.CurrentNode == "" {
			return nil
		}
		return s.release(res.AppName, res.CurrentNode)
	}
	return nil
}

func (s *Store) deploy(appName, nodeID string) error {
	app, ok := s.apps[appName]
	if !ok {
		return fmt.Errorf("application %s not in inventory", appName)
	}
	node := s.node(nodeID)
	if node == nil {
		return fmt.Errorf("node %s not in inventory", nodeID)
	}
	if !node.Available().Fits(app.MinRequirements) {
		return fmt.Errorf("node %s no longer fits application %s", nodeID, appName)
	}
	if node.CurrentUsage == nil {
		node.CurrentUsage = &v1alpha1.NodeUsage{}
	}
	// one list entry per charged instance, so every release undoes exactly one charge
	node.CurrentUsage.CPUCores += app.MinRequirements.CPUCores
	node.CurrentUsage.RAMGB += app.MinRequirements.RAMGB
	node.CurrentUsage.Apps = append(node.CurrentUsage.Apps, appName)
	slices.Sort(node.CurrentUsage.Apps)
	return nil
}

func (s *Store) release(appName, nodeID string) error {
	node := s.node(nodeID)
	if node == nil {
		return fmt.Errorf("node %s not in inventory", nodeID)
	}
	if !node.HostsApp(appName) {
		return fmt.Errorf("application %s does not run on node %s", appName, nodeID)
	}
	app := s.apps[appName]
	usage := node.CurrentUsage
	usage.CPUCores = max(0, usage.CPUCores-app.MinRequirements.CPUCores)
	usage.RAMGB = max(0, usage.RAMGB-app.MinRequirements.RAMGB)
	i := slices.Index(usage.Apps, appName)
	usage.Apps = slices.Delete(usage.Apps, i, i+1)
	return nil
}

func (s *Store) node(nodeID string) *v1alpha1.EdgeNode {
	for i := range s.nodes {
		if s.nodes[i].NodeID == nodeID {
			return &s.nodes[i]
		}
	}
	return nil
}
