package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-edge-placement/internal/config"
	"github.com/llm-d/llm-d-edge-placement/internal/dataset"
	"github.com/llm-d/llm-d-edge-placement/internal/dispatcher"
	"github.com/llm-d/llm-d-edge-placement/internal/engines/placement"
	"github.com/llm-d/llm-d-edge-placement/internal/inventory"
	"github.com/llm-d/llm-d-edge-placement/internal/logging"
	"github.com/llm-d/llm-d-edge-placement/internal/metrics"
	"github.com/llm-d/llm-d-edge-placement/internal/report"
	"github.com/llm-d/llm-d-edge-placement/internal/server"
)

const programName = "edge-placer"

// errEvaluationFailed is returned by replay --strict when a query does not match its solution.
var errEvaluationFailed = errors.New("replayed results do not match the expected solutions")

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   programName,
		Short: "Edge application placement engine",
		Long: `edge-placer decides which edge node should run an application, whether a
running application should migrate, or whether it should stop. It filters
nodes by free capacity and by user KPI targets and ranks the survivors by the
KPI profile of the application's 5G traffic category.`,
		SilenceUsage: true,
	}
	config.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCommand(), newReplayCommand(), newVersionCommand())
	return cmd
}

// components wires the engine stack from the resolved configuration.
type components struct {
	cfg        *config.Config
	datasets   *dataset.Datasets
	dispatcher *dispatcher.Dispatcher
}

func setup(cmd *cobra.Command, recorder metrics.Recorder) (*components, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.LoggingOptions())
	if err != nil {
		return nil, err
	}
	cmd.SetContext(ctrl.LoggerInto(cmd.Context(), logger))

	profiles, err := config.LoadKPIProfiles(cfg.Profiles)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Load(cfg.Datasets)
	if err != nil {
		return nil, err
	}
	engine, err := placement.NewPlacer(&placement.PlacerConfig{Profiles: profiles})
	if err != nil {
		return nil, err
	}
	d, err := dispatcher.NewDispatcher(&dispatcher.DispatcherConfig{Engine: engine, Recorder: recorder})
	if err != nil {
		return nil, err
	}
	logger.V(logging.DEBUG).Info("Configuration loaded",
		"applications", len(ds.Applications),
		"scenarios", len(ds.Scenarios),
		"categories", profiles.Categories())
	return &components{cfg: cfg, datasets: ds, dispatcher: d}, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the placement API over the nodes of one scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := prometheus.NewRegistry()
			registry.MustRegister(versioncollector.NewCollector(programName))
			recorder := metrics.NewPrometheusRecorder(registry)

			c, err := setup(cmd, recorder)
			if err != nil {
				return err
			}
			nodes, ok := c.datasets.Scenarios[c.cfg.Scenario]
			if !ok {
				return fmt.Errorf("scenario %q not found, available: %v", c.cfg.Scenario, c.datasets.Scenarios.IDs())
			}
			store := inventory.NewStore(c.datasets.Applications, nodes, recorder)

			srv, err := server.NewServer(server.Config{
				Address:         c.cfg.Server.Address,
				ShutdownTimeout: c.cfg.Server.ShutdownTimeout,
				Gatherer:        registry,
			}, store, c.dispatcher)
			if err != nil {
				return err
			}
			ctrl.LoggerFrom(cmd.Context()).Info("Serving scenario",
				"scenario", c.cfg.Scenario,
				"nodes", len(nodes),
				"version", version.Version)
			return srv.Run(cmd.Context())
		},
	}
}

func newReplayCommand() *cobra.Command {
	var (
		strict        bool
		compareStates bool
		keep          bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the expected calls of every query and evaluate the results",
		Long: `replay dispatches the expected function calls of every query in the queries
dataset against its scenario, appends the outcome to the results report and
compares the report with the expected solutions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := setup(cmd, metrics.NewNoopRecorder())
			if err != nil {
				return err
			}
			if c.datasets.Queries == nil {
				return fmt.Errorf("no queries dataset configured")
			}

			w := report.NewWriter(c.cfg.Report.Path)
			if !keep {
				if err := w.Reset(); err != nil {
					return err
				}
			}
			if _, err := report.Replay(cmd.Context(), c.dispatcher, c.datasets, w); err != nil {
				return err
			}
			recorded, err := report.Load(w.Path())
			if err != nil {
				return err
			}

			summary := report.Evaluate(c.datasets.Queries, recorded, report.EvaluateOptions{CompareStates: compareStates})
			printSummary(cmd.OutOrStdout(), summary)
			if strict && summary.Failed > 0 {
				return errEvaluationFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when any query does not match its solution")
	cmd.Flags().BoolVar(&compareStates, "compare-states", false, "Also compare status messages")
	cmd.Flags().BoolVar(&keep, "keep", false, "Append to an existing report instead of starting a new one")
	return cmd
}

func printSummary(out io.Writer, summary report.Summary) {
	pass := color.New(color.FgGreen, color.Bold).SprintFunc()
	fail := color.New(color.FgRed, color.Bold).SprintFunc()

	for _, c := range summary.Cases {
		if c.Err == nil {
			fmt.Fprintf(out, "%s %s\n", pass("PASS"), c.Name())
			continue
		}
		fmt.Fprintf(out, "%s %s\n      %v\n", fail("FAIL"), c.Name(), c.Err)
	}
	fmt.Fprintf(out, "\n%d passed, %d failed\n", summary.Passed, summary.Failed)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Print(programName))
		},
	}
}
