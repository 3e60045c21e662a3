package placement

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/config"
)

var _ = Describe("NewPlacer", func() {
	It("should reject a nil config", func() {
		_, err := NewPlacer(nil)
		Expect(err).To(HaveOccurred())
	})

	It("should default to the built-in profiles", func() {
		cfg := &PlacerConfig{}
		_, err := NewPlacer(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Profiles).NotTo(BeNil())
		Expect(cfg.Profiles.Categories()).To(HaveLen(3))
	})
})

var _ = Describe("Placer", func() {
	var (
		ctx    context.Context
		placer *Placer
		snap   Snapshot
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		placer, err = NewPlacer(&PlacerConfig{Profiles: config.DefaultKPIProfiles()})
		Expect(err).NotTo(HaveOccurred())
		snap = scenarioA()
	})

	Context("with the reference uRLLC scenario", func() {
		It("should pick the node with the lowest latency when no targets are given", func() {
			d, err := placer.Place(ctx, PlacementRequest{AppName: "teleop"}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal("Node2"))
			Expect(d.Candidates).To(Equal([]string{"Node2", "Node1"}))
			Expect(d.Category).To(Equal(v1alpha1.CategoryURLLC))
			Expect(d.Placed()).To(BeTrue())
		})

		It("should drop nodes above a latency target before ranking", func() {
			d, err := placer.Place(ctx, PlacementRequest{
				AppName: "teleop",
				Targets: map[v1alpha1.KPIName]float64{v1alpha1.KPILatency: 7},
			}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal("Node2"))
			Expect(d.Candidates).To(Equal([]string{"Node2"}))
		})

		It("should report no nodes when every node misses the target", func() {
			d, err := placer.Place(ctx, PlacementRequest{
				AppName: "teleop",
				Targets: map[v1alpha1.KPIName]float64{v1alpha1.KPILatency: 3},
			}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal(v1alpha1.NoNodesAvailable))
			Expect(d.Candidates).To(BeEmpty())
			Expect(d.Placed()).To(BeFalse())
		})

		It("should never return the current node when migrating", func() {
			snap.Nodes[1].CurrentUsage = &v1alpha1.NodeUsage{CPUCores: 2, RAMGB: 4, Apps: []string{"teleop"}}
			d, err := placer.Place(ctx, PlacementRequest{AppName: "teleop", CurrentNodeID: "Node2"}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal("Node1"))
			Expect(d.Candidates).NotTo(ContainElement("Node2"))
		})

		It("should ignore targets on KPIs outside the category profile", func() {
			d, err := placer.Place(ctx, PlacementRequest{
				AppName: "teleop",
				Targets: map[v1alpha1.KPIName]float64{v1alpha1.KPIThroughput: 1e9},
			}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal("Node2"))
		})

		It("should not mutate the snapshot", func() {
			before := v1alpha1.DeepCopyNodes(snap.Nodes)
			_, err := placer.Place(ctx, PlacementRequest{
				AppName: "teleop",
				Targets: map[v1alpha1.KPIName]float64{v1alpha1.KPILatency: 7},
			}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Nodes).To(Equal(before))
		})
	})

	Context("with lookup failures", func() {
		It("should report an unknown application", func() {
			d, err := placer.Place(ctx, PlacementRequest{AppName: "ghost"}, snap)
			Expect(errors.Is(err, ErrApplicationNotFound)).To(BeTrue())
			Expect(d.NodeID).To(Equal(v1alpha1.ApplicationNotFound))
		})

		It("should report an unknown category once capacity is available", func() {
			snap.Applications["legacy"] = v1alpha1.Application{
				MinRequirements: v1alpha1.Resources{CPUCores: 1, RAMGB: 1},
				Category:        "LTE",
			}
			d, err := placer.Place(ctx, PlacementRequest{AppName: "legacy"}, snap)
			Expect(errors.Is(err, ErrCategoryNotRecognized)).To(BeTrue())
			Expect(d.NodeID).To(Equal(v1alpha1.CategoryNotRecognized))
			Expect(d.Category).To(Equal(v1alpha1.TrafficCategory("LTE")))
		})

		It("should report no nodes for an unknown category without capacity", func() {
			snap.Applications["legacy"] = v1alpha1.Application{
				MinRequirements: v1alpha1.Resources{CPUCores: 64, RAMGB: 1},
				Category:        "LTE",
			}
			d, err := placer.Place(ctx, PlacementRequest{AppName: "legacy"}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal(v1alpha1.NoNodesAvailable))
		})
	})

	Context("with capacity limits", func() {
		It("should report no nodes when requirements exceed every node", func() {
			snap.Applications["big"] = v1alpha1.Application{
				MinRequirements: v1alpha1.Resources{CPUCores: 8, RAMGB: 4},
				Category:        v1alpha1.CategoryURLLC,
			}
			d, err := placer.Place(ctx, PlacementRequest{AppName: "big"}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal(v1alpha1.NoNodesAvailable))
		})

		It("should skip a better node whose free capacity is exhausted", func() {
			snap.Nodes[1] = busyNode("Node2", 4, 8, 3, 4, []string{"other"}, urllcKPIs(5, 99.99, 0.05))
			d, err := placer.Place(ctx, PlacementRequest{AppName: "teleop"}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal("Node1"))
		})

		It("should report no nodes when migrating away from the only eligible node", func() {
			snap.Nodes = snap.Nodes[1:]
			d, err := placer.Place(ctx, PlacementRequest{AppName: "teleop", CurrentNodeID: "Node2"}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal(v1alpha1.NoNodesAvailable))
		})
	})

	Context("with alternate profiles", func() {
		It("should rank by the injected profile", func() {
			profiles, err := config.ParseKPIProfiles([]byte("categories:\n  uRLLC: [packet_loss_percent]\n"))
			Expect(err).NotTo(HaveOccurred())
			custom, err := NewPlacer(&PlacerConfig{Profiles: profiles})
			Expect(err).NotTo(HaveOccurred())

			snap.Nodes[0].KPIs[v1alpha1.KPIPacketLoss] = 0.01
			d, err := custom.Place(ctx, PlacementRequest{AppName: "teleop"}, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeID).To(Equal("Node1"))
		})
	})

	Context("with empty KPI-filtered sets", func() {
		DescribeTable("should return exactly the no-nodes sentinel",
			func(targets map[v1alpha1.KPIName]float64) {
				d, err := placer.Place(ctx, PlacementRequest{AppName: "teleop", Targets: targets}, snap)
				Expect(err).NotTo(HaveOccurred())
				Expect(d.NodeID).To(Equal(v1alpha1.NoNodesAvailable))
				Expect(d.Candidates).To(BeEmpty())
			},
			Entry("latency below every node", map[v1alpha1.KPIName]float64{v1alpha1.KPILatency: 1}),
			Entry("availability above every node", map[v1alpha1.KPIName]float64{v1alpha1.KPIAvailability: 99.999}),
			Entry("conflicting targets", map[v1alpha1.KPIName]float64{
				v1alpha1.KPILatency:      7,
				v1alpha1.KPIPacketLoss:   0.01,
				v1alpha1.KPIAvailability: 90,
			}),
		)
	})
})
