package report

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/llm-d/llm-d-edge-placement/internal/dataset"
)

// EvaluateOptions tunes the comparison.
type EvaluateOptions struct {
	// CompareStates also compares status messages. Solutions written in
	// another language never match, so this is off by default.
	CompareStates bool
}

// CaseResult is the verdict for one query.
type CaseResult struct {
	TestID string
	// Index is the zero-based position of the query within its suite.
	Index int
	Query string
	// Err aggregates every mismatch of the query; nil means pass.
	Err error
}

// Name identifies the case as <test>_query_<n>.
func (c CaseResult) Name() string {
	return fmt.Sprintf("%s_query_%d", c.TestID, c.Index+1)
}

// Summary is the outcome of an evaluation.
type Summary struct {
	Cases  []CaseResult
	Passed int
	Failed int
}

// Err returns every failure combined, or nil when all cases passed.
func (s Summary) Err() error {
	var err error
	for _, c := range s.Cases {
		err = multierr.Append(err, c.Err)
	}
	return err
}

// Evaluate compares recorded results with the expected solutions.
func Evaluate(solutions dataset.QuerySuites, results Report, opts EvaluateOptions) Summary {
	var summary Summary
	for _, testID := range solutions.IDs() {
		actual, suiteFound := results[testID]
		for i, expected := range solutions[testID] {
			c := CaseResult{TestID: testID, Index: i, Query: expected.Query}
			switch {
			case !suiteFound:
				c.Err = fmt.Errorf("%s: suite missing from results", c.Name())
			case i >= len(actual):
				c.Err = fmt.Errorf("%s: result missing", c.Name())
			default:
				c.Err = compareCase(c.Name(), expected, actual[i], opts)
			}
			if c.Err == nil {
				summary.Passed++
			} else {
				summary.Failed++
			}
			summary.Cases = append(summary.Cases, c)
		}
	}
	return summary
}

// ExtraSuites lists result suites that have no expected solution.
func ExtraSuites(solutions dataset.QuerySuites, results Report) []string {
	return sets.List(sets.KeySet(results).Difference(sets.KeySet(solutions)))
}

func compareCase(name string, expected dataset.QueryCase, actual Entry, opts EvaluateOptions) error {
	if expected.Query != actual.Query {
		return fmt.Errorf("%s: query mismatch, results are out of order", name)
	}

	var errs error
	exp, act := expected.ExpectedResult.Function, actual.ExecutionResult.Function
	if len(exp) != len(act) {
		errs = multierr.Append(errs, fmt.Errorf("%s: expected %d functions, got %d", name, len(exp), len(act)))
	} else {
		for j := range exp {
			if exp[j].FunctionName != act[j].FunctionName {
				errs = multierr.Append(errs, fmt.Errorf("%s: function %d: expected %q, got %q",
					name, j+1, exp[j].FunctionName, act[j].FunctionName))
				continue
			}
			if diff := cmp.Diff(exp[j].Args, act[j].Args); diff != "" {
				errs = multierr.Append(errs, fmt.Errorf("%s: function %d (%s) arguments differ (-expected +actual):\n%s",
					name, j+1, exp[j].FunctionName, diff))
			}
		}
	}

	for j := 0; j < min(len(expected.ChosenNode), len(actual.ChosenNode)); j++ {
		if expected.ChosenNode[j] != actual.ChosenNode[j] {
			errs = multierr.Append(errs, fmt.Errorf("%s: function %d: expected node %s, got %s",
				name, j+1, expected.ChosenNode[j], actual.ChosenNode[j]))
		}
	}
	if opts.CompareStates {
		for j := 0; j < min(len(expected.State), len(actual.State)); j++ {
			if expected.State[j] != actual.State[j] {
				errs = multierr.Append(errs, fmt.Errorf("%s: function %d: expected state %q, got %q",
					name, j+1, expected.State[j], actual.State[j]))
			}
		}
	}
	return errs
}
