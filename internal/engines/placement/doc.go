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

// Package placement selects the edge node that should host an application.
//
// A decision runs three stages over a read-only snapshot of the nodes:
//
//   - capacity filtering keeps nodes whose free CPU and RAM cover the
//     application minimums, optionally excluding the node the application
//     is migrating away from;
//   - KPI filtering drops nodes that miss a user target on a KPI relevant
//     to the application's traffic category;
//   - ranking orders the survivors lexicographically by the category's KPI
//     profile, each KPI in its preferred direction.
//
// The first ranked node is the placement. Empty intermediate results yield
// the NO_NODES_AVAILABLE sentinel. The engine holds no mutable state; callers
// that commit decisions are responsible for serializing them.
package placement
