package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/logging"
)

// Direction tells whether smaller or larger KPI values are preferred.
type Direction string

const (
	// LowerIsBetter KPIs are filtered with "value <= target" and ranked ascending.
	LowerIsBetter Direction = "lower"
	// HigherIsBetter KPIs are filtered with "value >= target" and ranked descending.
	HigherIsBetter Direction = "higher"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	return d == LowerIsBetter || d == HigherIsBetter
}

// KPIPreference is one entry of a category profile.
type KPIPreference struct {
	Name      v1alpha1.KPIName
	Direction Direction
}

// CategoryProfile is the ordered list of KPIs relevant to a traffic category.
// The order is the ranking priority.
type CategoryProfile struct {
	Category v1alpha1.TrafficCategory
	KPIs     []KPIPreference
}

// Direction returns the direction of name if the profile covers it.
func (p CategoryProfile) Direction(name v1alpha1.KPIName) (Direction, bool) {
	for _, k := range p.KPIs {
		if k.Name == name {
			return k.Direction, true
		}
	}
	return "", false
}

// KPIProfilesSpec is the on-disk form of the KPI profiles.
type KPIProfilesSpec struct {
	// Directions maps every KPI used by a category to its preferred direction.
	Directions map[v1alpha1.KPIName]Direction `yaml:"directions" json:"directions"`

	// Categories maps a traffic category to its ordered KPI list.
	Categories map[v1alpha1.TrafficCategory][]v1alpha1.KPIName `yaml:"categories" json:"categories"`
}

// KPIProfiles holds validated category profiles. It is immutable once built
// and safe for concurrent reads.
type KPIProfiles struct {
	profiles map[v1alpha1.TrafficCategory]CategoryProfile
}

// DefaultDirections returns the built-in KPI directions.
func DefaultDirections() map[v1alpha1.KPIName]Direction {
	return map[v1alpha1.KPIName]Direction{
		v1alpha1.KPILatency:           LowerIsBetter,
		v1alpha1.KPIPacketLoss:        LowerIsBetter,
		v1alpha1.KPIAvailability:      HigherIsBetter,
		v1alpha1.KPIThroughput:        HigherIsBetter,
		v1alpha1.KPIConnectionDensity: HigherIsBetter,
		v1alpha1.KPIEnergyEfficiency:  HigherIsBetter,
	}
}

// DefaultKPIProfilesSpec returns the built-in profile definition.
func DefaultKPIProfilesSpec() KPIProfilesSpec {
	return KPIProfilesSpec{
		Directions: DefaultDirections(),
		Categories: map[v1alpha1.TrafficCategory][]v1alpha1.KPIName{
			v1alpha1.CategoryURLLC: {v1alpha1.KPILatency, v1alpha1.KPIAvailability, v1alpha1.KPIPacketLoss},
			v1alpha1.CategoryEMBB:  {v1alpha1.KPIThroughput, v1alpha1.KPIPacketLoss, v1alpha1.KPILatency},
			v1alpha1.CategoryMMTC:  {v1alpha1.KPIConnectionDensity, v1alpha1.KPIEnergyEfficiency, v1alpha1.KPIAvailability},
		},
	}
}

// DefaultKPIProfiles returns the built-in profiles.
func DefaultKPIProfiles() *KPIProfiles {
	p, err := NewKPIProfiles(DefaultKPIProfilesSpec())
	if err != nil {
		panic(fmt.Sprintf("built-in KPI profiles are invalid: %v", err))
	}
	return p
}

// Validate checks the profile document and returns every problem found.
func (s *KPIProfilesSpec) Validate() field.ErrorList {
	var allErrs field.ErrorList
	dirPath := field.NewPath("directions")
	for _, name := range sortedKeys(s.Directions) {
		if !name.IsKnown() {
			allErrs = append(allErrs, field.NotSupported(dirPath.Key(string(name)), name, kpiNames()))
			continue
		}
		if d := s.Directions[name]; !d.IsValid() {
			allErrs = append(allErrs, field.NotSupported(dirPath.Key(string(name)), d,
				[]string{string(LowerIsBetter), string(HigherIsBetter)}))
		}
	}

	catPath := field.NewPath("categories")
	if len(s.Categories) == 0 {
		allErrs = append(allErrs, field.Required(catPath, "at least one category profile is required"))
	}
	for _, category := range sortedKeys(s.Categories) {
		path := catPath.Key(string(category))
		if category == "" {
			allErrs = append(allErrs, field.Invalid(path, category, "category name must not be empty"))
			continue
		}
		kpis := s.Categories[category]
		if len(kpis) == 0 {
			allErrs = append(allErrs, field.Required(path, "profile must list at least one KPI"))
			continue
		}
		seen := make(map[v1alpha1.KPIName]bool, len(kpis))
		for i, name := range kpis {
			switch {
			case !name.IsKnown():
				allErrs = append(allErrs, field.NotSupported(path.Index(i), name, kpiNames()))
			case seen[name]:
				allErrs = append(allErrs, field.Duplicate(path.Index(i), name))
			case !s.Directions[name].IsValid():
				allErrs = append(allErrs, field.Required(dirPath.Key(string(name)),
					fmt.Sprintf("KPI used by category %s has no direction", category)))
			}
			seen[name] = true
		}
	}
	return allErrs
}

// NewKPIProfiles validates the profile document and builds the immutable profiles.
func NewKPIProfiles(spec KPIProfilesSpec) (*KPIProfiles, error) {
	if errs := spec.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid KPI profiles: %w", errs.ToAggregate())
	}
	out := &KPIProfiles{profiles: make(map[v1alpha1.TrafficCategory]CategoryProfile, len(spec.Categories))}
	for category, kpis := range spec.Categories {
		profile := CategoryProfile{Category: category, KPIs: make([]KPIPreference, 0, len(kpis))}
		for _, name := range kpis {
			profile.KPIs = append(profile.KPIs, KPIPreference{Name: name, Direction: spec.Directions[name]})
		}
		out.profiles[category] = profile
	}
	return out, nil
}

// ParseKPIProfiles parses a YAML profile document. Directions omitted from the
// document fall back to the built-in ones.
func ParseKPIProfiles(data []byte) (*KPIProfiles, error) {
	var spec KPIProfilesSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse KPI profiles: %w", err)
	}
	if spec.Directions == nil {
		spec.Directions = make(map[v1alpha1.KPIName]Direction)
	}
	for name, d := range DefaultDirections() {
		if _, ok := spec.Directions[name]; !ok {
			spec.Directions[name] = d
		}
	}
	return NewKPIProfiles(spec)
}

// LoadKPIProfiles reads profiles from path, or returns the defaults when path is empty.
// A directory is read as a mounted ConfigMap: one file per category, see ParseKPIProfileEntries.
func LoadKPIProfiles(path string) (*KPIProfiles, error) {
	if path == "" {
		return DefaultKPIProfiles(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read KPI profiles %s: %w", path, err)
	}
	if info.IsDir() {
		entries, err := readEntries(path)
		if err != nil {
			return nil, err
		}
		return ParseKPIProfileEntries(entries), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read KPI profiles %s: %w", path, err)
	}
	return ParseKPIProfiles(data)
}

func readEntries(dir string) (map[string]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list KPI profile entries in %s: %w", dir, err)
	}
	entries := make(map[string]string, len(files))
	for _, f := range files {
		// skip the ..data bookkeeping links of projected volumes
		if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read KPI profile entry %s: %w", f.Name(), err)
		}
		entries[f.Name()] = string(data)
	}
	return entries, nil
}

// ParseKPIProfileEntries builds profiles from per-category entries, each value
// being a YAML list of KPI names. Entries that fail to parse or validate are
// skipped; categories without a valid entry keep their built-in profile.
func ParseKPIProfileEntries(data map[string]string) *KPIProfiles {
	spec := DefaultKPIProfilesSpec()

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var kpis []v1alpha1.KPIName
		if err := yaml.Unmarshal([]byte(data[key]), &kpis); err != nil {
			ctrl.Log.Info("Failed to parse KPI profile entry, skipping",
				"key", key,
				"error", err)
			continue
		}

		candidate := KPIProfilesSpec{
			Directions: spec.Directions,
			Categories: map[v1alpha1.TrafficCategory][]v1alpha1.KPIName{v1alpha1.TrafficCategory(key): kpis},
		}
		if errs := candidate.Validate(); len(errs) > 0 {
			ctrl.Log.Info("Invalid KPI profile entry, skipping",
				"key", key,
				"error", errs.ToAggregate())
			continue
		}
		spec.Categories[v1alpha1.TrafficCategory(key)] = kpis
	}

	profiles, err := NewKPIProfiles(spec)
	if err != nil {
		// every entry was validated above, so this only fires if the defaults are broken
		panic(err)
	}
	ctrl.Log.V(logging.DEBUG).Info("Parsed KPI profile entries",
		"categoryCount", len(profiles.profiles))
	return profiles
}

// Profile returns a copy of the profile of category.
func (p *KPIProfiles) Profile(category v1alpha1.TrafficCategory) (CategoryProfile, bool) {
	profile, ok := p.profiles[category]
	if !ok {
		return CategoryProfile{}, false
	}
	profile.KPIs = slices.Clone(profile.KPIs)
	return profile, true
}

// Categories returns the configured categories in sorted order.
func (p *KPIProfiles) Categories() []v1alpha1.TrafficCategory {
	return sortedKeys(p.profiles)
}

func kpiNames() []string {
	names := make([]string, 0, len(v1alpha1.KnownKPIs))
	for _, k := range v1alpha1.KnownKPIs {
		names = append(names, string(k))
	}
	return names
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
