package report

import (
	"context"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/dataset"
	"github.com/llm-d/llm-d-edge-placement/internal/engines/placement"
	"github.com/llm-d/llm-d-edge-placement/internal/inventory"
)

// Replay dispatches the expected function calls of every query against its
// scenario and appends one entry per query to w. All calls of a suite see
// the unmodified scenario.
func Replay(ctx context.Context, d inventory.Dispatcher, ds *dataset.Datasets, w *Writer) (Report, error) {
	logger := ctrl.LoggerFrom(ctx)
	out := Report{}

	for _, testID := range ds.Queries.IDs() {
		nodes, ok := ds.Scenarios[testID]
		if !ok {
			return out, fmt.Errorf("no scenario for test %s", testID)
		}
		snapshot := placement.Snapshot{Applications: ds.Applications, Nodes: nodes}

		for _, qc := range ds.Queries[testID] {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			entry := Entry{
				Query:           qc.Query,
				ExecutionResult: dataset.ExecutionResult{Function: qc.ExpectedResult.Function},
				ChosenNode:      make([]string, 0, len(qc.ExpectedResult.Function)),
				State:           make([]string, 0, len(qc.ExpectedResult.Function)),
			}
			if entry.ExecutionResult.Function == nil {
				entry.ExecutionResult.Function = []v1alpha1.FunctionCall{}
			}
			for _, call := range qc.ExpectedResult.Function {
				res := d.Dispatch(ctx, call, snapshot)
				entry.ChosenNode = append(entry.ChosenNode, res.ChosenNode)
				entry.State = append(entry.State, res.State)
			}
			logger.Info("Query replayed",
				"test", testID,
				"query", qc.Query,
				"chosenNodes", entry.ChosenNode)

			if w != nil {
				if err := w.Append(testID, entry); err != nil {
					return out, err
				}
			}
			out[testID] = append(out[testID], entry)
		}
	}
	return out, nil
}
