package inventory

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/dispatcher"
	"github.com/llm-d/llm-d-edge-placement/internal/engines/placement"
)

func deployCall(app string) v1alpha1.FunctionCall {
	return v1alpha1.FunctionCall{FunctionName: v1alpha1.ActionDeploy, Args: map[string]any{"app_name": app}}
}

func nodeByID(snap placement.Snapshot, id string) v1alpha1.EdgeNode {
	for _, n := range snap.Nodes {
		if n.NodeID == id {
			return n
		}
	}
	Fail("node " + id + " not found")
	return v1alpha1.EdgeNode{}
}

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		d     *dispatcher.Dispatcher
		store *Store
		apps  v1alpha1.ApplicationTable
		nodes []v1alpha1.EdgeNode
	)

	BeforeEach(func() {
		ctx = context.Background()
		engine, err := placement.NewPlacer(&placement.PlacerConfig{})
		Expect(err).NotTo(HaveOccurred())
		d, err = dispatcher.NewDispatcher(&dispatcher.DispatcherConfig{Engine: engine})
		Expect(err).NotTo(HaveOccurred())

		apps = v1alpha1.ApplicationTable{
			"teleop": {MinRequirements: v1alpha1.Resources{CPUCores: 2, RAMGB: 4}, Category: v1alpha1.CategoryURLLC},
			"camera": {MinRequirements: v1alpha1.Resources{CPUCores: 1, RAMGB: 1}, Category: v1alpha1.CategoryURLLC},
		}
		nodes = []v1alpha1.EdgeNode{
			{
				NodeID:       "Node1",
				Capabilities: v1alpha1.Resources{CPUCores: 4, RAMGB: 8},
				KPIs:         map[v1alpha1.KPIName]float64{v1alpha1.KPILatency: 10},
			},
			{
				NodeID:       "Node2",
				Capabilities: v1alpha1.Resources{CPUCores: 4, RAMGB: 8},
				CurrentUsage: &v1alpha1.NodeUsage{},
				KPIs:         map[v1alpha1.KPIName]float64{v1alpha1.KPILatency: 5},
			},
		}
		store = NewStore(apps, nodes, nil)
	})

	It("should hand out independent snapshots", func() {
		snap := store.Snapshot()
		snap.Nodes[0].Capabilities.CPUCores = 0
		snap.Applications["teleop"] = v1alpha1.Application{}
		Expect(store.Snapshot().Nodes[0].Capabilities.CPUCores).To(Equal(4))
		Expect(store.Snapshot().Applications["teleop"].Category).To(Equal(v1alpha1.CategoryURLLC))
	})

	It("should not alias the constructor inputs", func() {
		nodes[0].NodeID = "renamed"
		Expect(store.Snapshot().Nodes[0].NodeID).To(Equal("Node1"))
	})

	It("should commit a deployment to the chosen node", func() {
		res := store.Execute(ctx, d, deployCall("teleop"))
		Expect(res.ChosenNode).To(Equal("Node2"))

		node2 := nodeByID(store.Snapshot(), "Node2")
		Expect(node2.CurrentUsage.Apps).To(Equal([]string{"teleop"}))
		Expect(node2.Available()).To(Equal(v1alpha1.Resources{CPUCores: 2, RAMGB: 4}))
	})

	It("should fill capacity before spilling to the next node", func() {
		Expect(store.Execute(ctx, d, deployCall("teleop")).ChosenNode).To(Equal("Node2"))
		Expect(store.Execute(ctx, d, deployCall("teleop")).ChosenNode).To(Equal("Node2"))
		Expect(store.Execute(ctx, d, deployCall("teleop")).ChosenNode).To(Equal("Node1"))
		Expect(store.Execute(ctx, d, deployCall("teleop")).ChosenNode).To(Equal("Node1"))
		Expect(store.Execute(ctx, d, deployCall("teleop")).ChosenNode).To(Equal(v1alpha1.NoNodesAvailable))
	})

	It("should move usage when migrating", func() {
		store.Execute(ctx, d, deployCall("teleop"))
		res := store.Execute(ctx, d, v1alpha1.FunctionCall{
			FunctionName: v1alpha1.ActionMigrate,
			Args:         map[string]any{"app_name": "teleop"},
		})
		Expect(res.CurrentNode).To(Equal("Node2"))
		Expect(res.ChosenNode).To(Equal("Node1"))

		snap := store.Snapshot()
		node1, node2 := nodeByID(snap, "Node1"), nodeByID(snap, "Node2")
		Expect(node2.HostsApp("teleop")).To(BeFalse())
		Expect(node2.Available()).To(Equal(v1alpha1.Resources{CPUCores: 4, RAMGB: 8}))
		Expect(node1.HostsApp("teleop")).To(BeTrue())
	})

	It("should charge and release every instance of a repeated deployment", func() {
		Expect(store.Execute(ctx, d, deployCall("teleop")).ChosenNode).To(Equal("Node2"))
		Expect(store.Execute(ctx, d, deployCall("teleop")).ChosenNode).To(Equal("Node2"))

		node2 := nodeByID(store.Snapshot(), "Node2")
		Expect(node2.CurrentUsage.Apps).To(Equal([]string{"teleop", "teleop"}))
		Expect(node2.Available()).To(Equal(v1alpha1.Resources{CPUCores: 0, RAMGB: 0}))

		stop := v1alpha1.FunctionCall{FunctionName: v1alpha1.ActionStop, Args: map[string]any{"app_name": "teleop"}}
		store.Execute(ctx, d, stop)
		node2 = nodeByID(store.Snapshot(), "Node2")
		Expect(node2.CurrentUsage.Apps).To(Equal([]string{"teleop"}))
		Expect(node2.Available()).To(Equal(v1alpha1.Resources{CPUCores: 2, RAMGB: 4}))

		store.Execute(ctx, d, stop)
		node2 = nodeByID(store.Snapshot(), "Node2")
		Expect(node2.HostsApp("teleop")).To(BeFalse())
		Expect(node2.Available()).To(Equal(v1alpha1.Resources{CPUCores: 4, RAMGB: 8}))
	})

	It("should keep capacity consistent when migrating onto a node that already hosts the app", func() {
		Expect(store.Execute(ctx, d, deployCall("teleop")).ChosenNode).To(Equal("Node2"))
		Expect(store.Commit(dispatcher.Result{
			Action:     v1alpha1.ActionDeploy,
			AppName:    "teleop",
			ChosenNode: "Node1",
			Outcome:    "placed",
		})).To(Succeed())

		res := store.Execute(ctx, d, v1alpha1.FunctionCall{
			FunctionName: v1alpha1.ActionMigrate,
			Args:         map[string]any{"app_name": "teleop"},
		})
		Expect(res.CurrentNode).To(Equal("Node1"))
		Expect(res.ChosenNode).To(Equal("Node2"))

		snap := store.Snapshot()
		node1, node2 := nodeByID(snap, "Node1"), nodeByID(snap, "Node2")
		Expect(node1.Available()).To(Equal(v1alpha1.Resources{CPUCores: 4, RAMGB: 8}))
		Expect(node2.CurrentUsage.Apps).To(Equal([]string{"teleop", "teleop"}))
		Expect(node2.Available()).To(Equal(v1alpha1.Resources{CPUCores: 0, RAMGB: 0}))
	})

	It("should release usage when stopping", func() {
		store.Execute(ctx, d, deployCall("teleop"))
		store.Execute(ctx, d, deployCall("camera"))
		res := store.Execute(ctx, d, v1alpha1.FunctionCall{
			FunctionName: v1alpha1.ActionStop,
			Args:         map[string]any{"app_name": "teleop"},
		})
		Expect(res.State).To(Equal("Application teleop will be stopped from node Node2."))

		node2 := nodeByID(store.Snapshot(), "Node2")
		Expect(node2.CurrentUsage.Apps).To(Equal([]string{"camera"}))
		Expect(node2.Available()).To(Equal(v1alpha1.Resources{CPUCores: 3, RAMGB: 7}))
	})

	It("should leave the inventory untouched for sentinel results", func() {
		before := store.Snapshot()
		store.Execute(ctx, d, deployCall("ghost"))
		store.Execute(ctx, d, v1alpha1.FunctionCall{FunctionName: "reboot_app", Args: map[string]any{"app_name": "teleop"}})
		store.Execute(ctx, d, v1alpha1.FunctionCall{FunctionName: v1alpha1.ActionStop, Args: map[string]any{"app_name": "teleop"}})
		Expect(store.Snapshot()).To(Equal(before))
	})

	It("should reject commits that no longer fit", func() {
		err := store.Commit(dispatcher.Result{
			Action:     v1alpha1.ActionDeploy,
			AppName:    "teleop",
			ChosenNode: "Node1",
			Outcome:    "placed",
		})
		Expect(err).NotTo(HaveOccurred())
		err = store.Commit(dispatcher.Result{
			Action:     v1alpha1.ActionDeploy,
			AppName:    "teleop",
			ChosenNode: "Node1",
			Outcome:    "placed",
		})
		Expect(err).NotTo(HaveOccurred())
		err = store.Commit(dispatcher.Result{
			Action:     v1alpha1.ActionDeploy,
			AppName:    "teleop",
			ChosenNode: "Node1",
			Outcome:    "placed",
		})
		Expect(err).To(MatchError(ContainSubstring("no longer fits")))
	})

	It("should reject commits for unknown nodes", func() {
		err := store.Commit(dispatcher.Result{
			Action:      v1alpha1.ActionStop,
			AppName:     "teleop",
			CurrentNode: "Node9",
			Outcome:     "stopped",
		})
		Expect(err).To(MatchError(ContainSubstring("Node9")))
	})

	It("should never overcommit under concurrent deployments", func() {
		var wg sync.WaitGroup
		results := make([]dispatcher.Result, 20)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				results[i] = store.Execute(ctx, d, deployCall("teleop"))
			}(i)
		}
		wg.Wait()

		placed := 0
		for _, r := range results {
			if r.Placed() {
				placed++
			}
		}
		Expect(placed).To(Equal(4))
		for _, n := range store.Snapshot().Nodes {
			avail := n.Available()
			Expect(avail.CPUCores).To(BeNumerically(">=", 0))
			Expect(avail.RAMGB).To(BeNumerically(">=", 0))
		}
	})
})
