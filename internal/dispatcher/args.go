package dispatcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cast"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/logging"
)

// appNameArg returns the app_name argument.
func appNameArg(args map[string]any) (string, error) {
	raw, ok := args[v1alpha1.ArgAppName]
	if !ok {
		return "", fmt.Errorf("missing %s", v1alpha1.ArgAppName)
	}
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%s must be a non-empty string", v1alpha1.ArgAppName)
	}
	return name, nil
}

// parseTargets converts every KPI argument into a numeric target. Arguments
// that do not name a known KPI are ignored.
func parseTargets(logger logr.Logger, args map[string]any) (map[v1alpha1.KPIName]float64, error) {
	targets := make(map[v1alpha1.KPIName]float64)
	for key, raw := range args {
		if key == v1alpha1.ArgAppName {
			continue
		}
		name := v1alpha1.KPIName(key)
		if !name.IsKnown() {
			logger.V(logging.DEBUG).Info("Ignoring argument that is not a KPI", "argument", key)
			continue
		}
		value, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		targets[name] = value
	}
	return targets, nil
}

// toFloat accepts numbers, json.Number and numeric strings. cast maps nil and
// booleans to numbers, so those are rejected first.
func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case nil, bool:
		return 0, fmt.Errorf("value of type %T is not a number", raw)
	case string:
		raw = strings.TrimSpace(x)
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("value %v is not a number", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %v is not a finite number", v)
	}
	return v, nil
}
