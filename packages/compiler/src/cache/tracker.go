// Package cache provides the compile cache: the dependency tracker that
// records every source touched during a compile, the metadata used for
// freshness checks, the unit stores and the fragment cache.
package cache

import (
	"sort"
	"strings"
)

// Dependency identifier prefixes
const (
	componentPrefix = "component:"
	templatePrefix  = "template:"
)

// ComponentDependency returns the component name of a dependency identifier
func ComponentDependency(dep string) (string, bool) {
	if strings.HasPrefix(dep, componentPrefix) {
		return dep[len(componentPrefix):], true
	}
	return "", false
}

// TemplateDependency returns the template path of a dependency identifier
func TemplateDependency(dep string) (string, bool) {
	if strings.HasPrefix(dep, templatePrefix) {
		return dep[len(templatePrefix):], true
	}
	return "", false
}

// Metadata is the freshness metadata persisted with a compiled unit: the
// source modification timestamp at compile time plus the identifiers of
// every dependency touched transitively during the compile.
type Metadata struct {
	// SourceTimestamp is the template's modification time, unix seconds
	SourceTimestamp int64 `json:"source_timestamp"`
	// Dependencies lists component names (prefixed "component:") and
	// included/extended template paths (prefixed "template:").
	Dependencies []string `json:"dependencies"`
}

// DependencyTracker accumulates the set of component names and
// included/extended template paths touched, transitively, during one
// top-level compile. One tracker is shared by the top-level compile and all
// of its nested component sub-compiles.
type DependencyTracker struct {
	components map[string]bool
	templates  map[string]bool
}

// NewDependencyTracker creates an empty DependencyTracker
func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		components: make(map[string]bool),
		templates:  make(map[string]bool),
	}
}

// AddComponent records a component touched during the compile
func (t *DependencyTracker) AddComponent(name string) {
	t.components[name] = true
}

// AddTemplate records an included or extended template path
func (t *DependencyTracker) AddTemplate(path string) {
	t.templates[path] = true
}

// Components returns the recorded component names, sorted
func (t *DependencyTracker) Components() []string {
	return sortedKeys(t.components)
}

// Templates returns the recorded template paths, sorted
func (t *DependencyTracker) Templates() []string {
	return sortedKeys(t.templates)
}

// Metadata builds cache metadata from the tracker state and the template's
// source timestamp.
func (t *DependencyTracker) Metadata(sourceTimestamp int64) Metadata {
	deps := make([]string, 0, len(t.components)+len(t.templates))
	for _, c := range sortedKeys(t.components) {
		deps = append(deps, componentPrefix+c)
	}
	for _, p := range sortedKeys(t.templates) {
		deps = append(deps, templatePrefix+p)
	}
	return Metadata{SourceTimestamp: sourceTimestamp, Dependencies: deps}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
