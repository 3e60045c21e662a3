/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package dataset loads and validates the application table, the scenario
// node lists and the queries with their expected solutions. Files may be
// JSON or YAML.
package dataset

import (
	"fmt"
	"os"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/yaml"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/config"
)

// Scenarios maps a test identifier to the node list of that scenario.
type Scenarios map[string][]v1alpha1.EdgeNode

// IDs returns the scenario identifiers in sorted order.
func (s Scenarios) IDs() []string {
	return sets.List(sets.KeySet(s))
}

// ExecutionResult is the list of function calls produced for one query.
type ExecutionResult struct {
	Function []v1alpha1.FunctionCall `json:"function"`
}

// QueryCase is one natural-language query with its expected solution.
type QueryCase struct {
	Query          string          `json:"query"`
	ExpectedResult ExecutionResult `json:"expected_result"`
	ChosenNode     []string        `json:"chosen_node,omitempty"`
	State          []string        `json:"state,omitempty"`
}

// QuerySuites maps a test identifier to its queries. The identifier selects the scenario.
type QuerySuites map[string][]QueryCase

// IDs returns the suite identifiers in sorted order.
func (q QuerySuites) IDs() []string {
	return sets.List(sets.KeySet(q))
}

// Datasets bundles every loaded dataset.
type Datasets struct {
	Applications v1alpha1.ApplicationTable
	Scenarios    Scenarios
	// Queries is nil when no queries file is configured.
	Queries QuerySuites
}

// Load reads and validates the datasets named by cfg. The queries file is optional.
func Load(cfg config.DatasetsConfig) (*Datasets, error) {
	apps, err := LoadApplications(cfg.Apps)
	if err != nil {
		return nil, err
	}
	scenarios, err := LoadScenarios(cfg.Scenarios)
	if err != nil {
		return nil, err
	}
	out := &Datasets{Applications: apps, Scenarios: scenarios}
	if cfg.Queries != "" {
		if out.Queries, err = LoadQueries(cfg.Queries); err != nil {
			return nil, err
		}
		if errs := ValidateQueries(out.Queries, scenarios); len(errs) > 0 {
			return nil, fmt.Errorf("invalid queries %s: %w", cfg.Queries, errs.ToAggregate())
		}
	}
	return out, nil
}

// LoadApplications reads the application table.
func LoadApplications(path string) (v1alpha1.ApplicationTable, error) {
	var apps v1alpha1.ApplicationTable
	if err := readFile(path, &apps); err != nil {
		return nil, err
	}
	if errs := ValidateApplications(apps); len(errs) > 0 {
		return nil, fmt.Errorf("invalid applications %s: %w", path, errs.ToAggregate())
	}
	return apps, nil
}

// LoadScenarios reads the scenario node lists.
func LoadScenarios(path string) (Scenarios, error) {
	var scenarios Scenarios
	if err := readFile(path, &scenarios); err != nil {
		return nil, err
	}
	if errs := ValidateScenarios(scenarios); len(errs) > 0 {
		return nil, fmt.Errorf("invalid scenarios %s: %w", path, errs.ToAggregate())
	}
	return scenarios, nil
}

// LoadQueries reads the queries with their expected solutions.
func LoadQueries(path string) (QuerySuites, error) {
	var queries QuerySuites
	if err := readFile(path, &queries); err != nil {
		return nil, err
	}
	return queries, nil
}

func readFile(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	return nil
}

// ValidateApplications checks the application table. Unknown categories are
// accepted here; they surface as a decision outcome.
func ValidateApplications(apps v1alpha1.ApplicationTable) field.ErrorList {
	var allErrs field.ErrorList
	for _, name := range sets.List(sets.KeySet(apps)) {
		path := field.NewPath("applications").Key(name)
		app := apps[name]
		if name == "" {
			allErrs = append(allErrs, field.Invalid(path, name, "application name must not be empty"))
		}
		allErrs = append(allErrs, validateResources(path.Child("min_requirements"), app.MinRequirements)...)
		if app.Category == "" {
			allErrs = append(allErrs, field.Required(path.Child("category_5G"), ""))
		}
	}
	return allErrs
}

// ValidateScenarios checks every node list.
func ValidateScenarios(scenarios Scenarios) field.ErrorList {
	var allErrs field.ErrorList
	for _, id := range scenarios.IDs() {
		allErrs = append(allErrs, ValidateNodes(field.NewPath("scenarios").Key(id), scenarios[id])...)
	}
	return allErrs
}

// ValidateNodes checks one node list: identifiers are present and unique,
// capacities and usage are non-negative, and KPI names are known.
func ValidateNodes(path *field.Path, nodes []v1alpha1.EdgeNode) field.ErrorList {
	var allErrs field.ErrorList
	seen := sets.New[string]()
	for i := range nodes {
		node := &nodes[i]
		nodePath := path.Index(i)
		switch {
		case node.NodeID == "":
			allErrs = append(allErrs, field.Required(nodePath.Child("node_id"), ""))
		case seen.Has(node.NodeID):
			allErrs = append(allErrs, field.Duplicate(nodePath.Child("node_id"), node.NodeID))
		}
		seen.Insert(node.NodeID)

		allErrs = append(allErrs, validateResources(nodePath.Child("server_capabilities"), node.Capabilities)...)
		if u := node.CurrentUsage; u != nil {
			allErrs = append(allErrs, validateResources(nodePath.Child("server_current_usage"),
				v1alpha1.Resources{CPUCores: u.CPUCores, RAMGB: u.RAMGB})...)
		}
		for name := range node.KPIs {
			if !name.IsKnown() {
				allErrs = append(allErrs, field.NotSupported(nodePath.Child("server_kpis").Key(string(name)),
					name, v1alpha1.KnownKPIs))
			}
		}
	}
	return allErrs
}

// ValidateQueries checks that every suite refers to a known scenario.
func ValidateQueries(queries QuerySuites, scenarios Scenarios) field.ErrorList {
	var allErrs field.ErrorList
	for _, id := range queries.IDs() {
		if _, ok := scenarios[id]; !ok {
			allErrs = append(allErrs, field.NotFound(field.NewPath("queries").Key(id), id))
		}
	}
	return allErrs
}

func validateResources(path *field.Path, r v1alpha1.Resources) field.ErrorList {
	var allErrs field.ErrorList
	if r.CPUCores < 0 {
		allErrs = append(allErrs, field.Invalid(path.Child("cpu_cores"), r.CPUCores, "must be non-negative"))
	}
	if r.RAMGB < 0 {
		allErrs = append(allErrs, field.Invalid(path.Child("ram_gb"), r.RAMGB, "must be non-negative"))
	}
	return allErrs
}
